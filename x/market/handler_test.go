package market_test

import (
	"context"
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/app"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/store"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/weavetest/assert"
	"github.com/iov-one/weave/x"
	"github.com/iov-one/weave/x/cash"

	"github.com/iov-one/tokenmarket/x/allowance"
	"github.com/iov-one/tokenmarket/x/deed"
	"github.com/iov-one/tokenmarket/x/market"
)

var (
	collection = []byte("gallery")
	tokenID    = []byte("mona-lisa")
)

func TestCreatePairHandler(t *testing.T) {
	alice := weavetest.NewCondition()
	stranger := weavetest.NewCondition()

	price := coin.NewCoin(7, 0, "FUN")

	cases := map[string]struct {
		setup          func(t *testing.T, db weave.KVStore)
		signer         weave.Condition
		mutator        func(msg *market.CreatePairMsg)
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, db weave.KVStore)
	}{
		"happy path": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
			},
			signer: alice,
			check: func(t *testing.T, db weave.KVStore) {
				var pair market.Pair
				err := market.NewBucket().One(db, market.PairKey(collection, tokenID, "FUN"), &pair)
				assert.Nil(t, err)
				assert.Equal(t, pair.Owner, alice.Address())
				assert.Equal(t, pair.Price.Equals(price), true)
			},
		},
		"deed not in custody": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, alice.Address())
			},
			signer:         alice,
			wantCheckErr:   market.ErrNotCustodied,
			wantDeliverErr: market.ErrNotCustodied,
		},
		"unknown deed": {
			signer:         alice,
			wantCheckErr:   market.ErrNotCustodied,
			wantDeliverErr: market.ErrNotCustodied,
		},
		"already listed": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
				listPair(t, db, collection, tokenID, alice.Address(), price)
			},
			signer:         stranger,
			wantCheckErr:   market.ErrDuplicatePair,
			wantDeliverErr: market.ErrDuplicatePair,
		},
		"no signer": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
			},
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
		},
		"negative price": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
			},
			signer: alice,
			mutator: func(msg *market.CreatePairMsg) {
				negative := coin.NewCoin(-1, 0, "FUN")
				msg.Price = &negative
			},
			wantCheckErr:   errors.ErrAmount,
			wantDeliverErr: errors.ErrAmount,
		},
		"missing token id": {
			signer: alice,
			mutator: func(msg *market.CreatePairMsg) {
				msg.TokenId = nil
			},
			wantCheckErr:   errors.ErrEmpty,
			wantDeliverErr: errors.ErrEmpty,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db := store.MemStore()
			migration.MustInitPkg(db, "market", "deed", "allowance", "cash")
			if tc.setup != nil {
				tc.setup(t, db)
			}

			r, authenticator := newRouter()
			ctx := context.Background()
			if tc.signer != nil {
				ctx = authenticator.SetConditions(ctx, tc.signer)
			}

			msg := &market.CreatePairMsg{
				Metadata:   &weave.Metadata{Schema: 1},
				Collection: collection,
				TokenId:    tokenID,
				Price:      &price,
			}
			if tc.mutator != nil {
				tc.mutator(msg)
			}
			tx := &weavetest.Tx{Msg: msg}

			cache := db.CacheWrap()
			if _, err := r.Check(ctx, cache, tx); !tc.wantCheckErr.Is(err) {
				t.Fatalf("check expected %+v but got %+v", tc.wantCheckErr, err)
			}
			cache.Discard()

			if _, err := r.Deliver(ctx, cache, tx); !tc.wantDeliverErr.Is(err) {
				t.Fatalf("deliver expected %+v but got %+v", tc.wantDeliverErr, err)
			}
			if tc.check != nil {
				tc.check(t, cache)
			}
		})
	}
}

func TestRetrieveTokenHandler(t *testing.T) {
	alice := weavetest.NewCondition()
	stranger := weavetest.NewCondition()

	price := coin.NewCoin(7, 0, "FUN")

	cases := map[string]struct {
		setup          func(t *testing.T, db weave.KVStore)
		signer         weave.Condition
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, db weave.KVStore)
	}{
		"owner retrieves": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
				listPair(t, db, collection, tokenID, alice.Address(), price)
			},
			signer: alice,
			check: func(t *testing.T, db weave.KVStore) {
				assertNotListed(t, db, collection, tokenID)
				owner, err := deed.NewController().OwnerOf(db, collection, tokenID)
				assert.Nil(t, err)
				assert.Equal(t, owner, alice.Address())
			},
		},
		"stranger cannot retrieve": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
				listPair(t, db, collection, tokenID, alice.Address(), price)
			},
			signer:         stranger,
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
		},
		"not listed": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
			},
			signer:         alice,
			wantCheckErr:   market.ErrPairNotFound,
			wantDeliverErr: market.ErrPairNotFound,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db := store.MemStore()
			migration.MustInitPkg(db, "market", "deed", "allowance", "cash")
			if tc.setup != nil {
				tc.setup(t, db)
			}

			r, authenticator := newRouter()
			ctx := context.Background()
			if tc.signer != nil {
				ctx = authenticator.SetConditions(ctx, tc.signer)
			}

			tx := &weavetest.Tx{Msg: &market.RetrieveTokenMsg{
				Metadata:   &weave.Metadata{Schema: 1},
				Collection: collection,
				TokenId:    tokenID,
			}}

			cache := db.CacheWrap()
			if _, err := r.Check(ctx, cache, tx); !tc.wantCheckErr.Is(err) {
				t.Fatalf("check expected %+v but got %+v", tc.wantCheckErr, err)
			}
			cache.Discard()

			if _, err := r.Deliver(ctx, cache, tx); !tc.wantDeliverErr.Is(err) {
				t.Fatalf("deliver expected %+v but got %+v", tc.wantDeliverErr, err)
			}
			if tc.check != nil {
				tc.check(t, cache)
			}
		})
	}
}

func TestSwapTokenHandler(t *testing.T) {
	alice := weavetest.NewCondition()
	bob := weavetest.NewCondition()

	price := coin.NewCoin(7, 0, "FUN")
	zero := coin.NewCoin(0, 0, "FUN")

	bank := cash.NewBucket()
	ctrl := cash.NewController(bank)

	cases := map[string]struct {
		setup          func(t *testing.T, db weave.KVStore)
		signer         weave.Condition
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, db weave.KVStore)
	}{
		"happy path": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
				listPair(t, db, collection, tokenID, alice.Address(), price)
				setBalance(t, db, bank, bob.Address(), price)
				grantAllowance(t, db, bob.Address(), market.CustodyAddress(), price)
			},
			signer: bob,
			check: func(t *testing.T, db weave.KVStore) {
				assertNotListed(t, db, collection, tokenID)

				owner, err := deed.NewController().OwnerOf(db, collection, tokenID)
				assert.Nil(t, err)
				assert.Equal(t, owner, bob.Address())

				assertBalance(t, db, ctrl, alice.Address(), price)

				// the allowance was fully consumed
				granted, err := allowance.NewController(ctrl).Allowance(db, bob.Address(), market.CustodyAddress(), "FUN")
				assert.Nil(t, err)
				assert.Equal(t, granted.IsZero(), true)
			},
		},
		"allowance below price": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
				listPair(t, db, collection, tokenID, alice.Address(), price)
				setBalance(t, db, bank, bob.Address(), price)
				grantAllowance(t, db, bob.Address(), market.CustodyAddress(), coin.NewCoin(6, 0, "FUN"))
			},
			signer:         bob,
			wantCheckErr:   market.ErrAllowanceMismatch,
			wantDeliverErr: market.ErrAllowanceMismatch,
		},
		"allowance above price": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
				listPair(t, db, collection, tokenID, alice.Address(), price)
				setBalance(t, db, bank, bob.Address(), price)
				grantAllowance(t, db, bob.Address(), market.CustodyAddress(), coin.NewCoin(8, 0, "FUN"))
			},
			signer:         bob,
			wantCheckErr:   market.ErrAllowanceMismatch,
			wantDeliverErr: market.ErrAllowanceMismatch,
		},
		"no allowance": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
				listPair(t, db, collection, tokenID, alice.Address(), price)
				setBalance(t, db, bank, bob.Address(), price)
			},
			signer:         bob,
			wantCheckErr:   market.ErrAllowanceMismatch,
			wantDeliverErr: market.ErrAllowanceMismatch,
		},
		"free listing needs no allowance": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
				listPair(t, db, collection, tokenID, alice.Address(), zero)
			},
			signer: bob,
			check: func(t *testing.T, db weave.KVStore) {
				assertNotListed(t, db, collection, tokenID)
				owner, err := deed.NewController().OwnerOf(db, collection, tokenID)
				assert.Nil(t, err)
				assert.Equal(t, owner, bob.Address())
			},
		},
		"not listed": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
			},
			signer:         bob,
			wantCheckErr:   market.ErrPairNotFound,
			wantDeliverErr: market.ErrPairNotFound,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db := store.MemStore()
			migration.MustInitPkg(db, "market", "deed", "allowance", "cash")
			if tc.setup != nil {
				tc.setup(t, db)
			}

			r, authenticator := newRouter()
			ctx := context.Background()
			if tc.signer != nil {
				ctx = authenticator.SetConditions(ctx, tc.signer)
			}

			tx := &weavetest.Tx{Msg: &market.SwapTokenMsg{
				Metadata:   &weave.Metadata{Schema: 1},
				Collection: collection,
				TokenId:    tokenID,
			}}

			cache := db.CacheWrap()
			if _, err := r.Check(ctx, cache, tx); !tc.wantCheckErr.Is(err) {
				t.Fatalf("check expected %+v but got %+v", tc.wantCheckErr, err)
			}
			cache.Discard()

			if _, err := r.Deliver(ctx, cache, tx); !tc.wantDeliverErr.Is(err) {
				t.Fatalf("deliver expected %+v but got %+v", tc.wantDeliverErr, err)
			}
			if tc.check != nil {
				tc.check(t, cache)
			}
		})
	}
}

// A settled pair is gone. Running the same swap twice must fail the second
// time, no matter how well funded the buyer is.
func TestSwapTokenSettlesOnlyOnce(t *testing.T) {
	alice := weavetest.NewCondition()
	bob := weavetest.NewCondition()

	price := coin.NewCoin(7, 0, "FUN")
	double, err := price.Add(price)
	assert.Nil(t, err)

	db := store.MemStore()
	migration.MustInitPkg(db, "market", "deed", "allowance", "cash")

	bank := cash.NewBucket()
	issueDeed(t, db, collection, tokenID, market.CustodyAddress())
	listPair(t, db, collection, tokenID, alice.Address(), price)
	setBalance(t, db, bank, bob.Address(), double)
	grantAllowance(t, db, bob.Address(), market.CustodyAddress(), price)

	r, authenticator := newRouter()
	ctx := authenticator.SetConditions(context.Background(), bob)
	tx := &weavetest.Tx{Msg: &market.SwapTokenMsg{
		Metadata:   &weave.Metadata{Schema: 1},
		Collection: collection,
		TokenId:    tokenID,
	}}

	if _, err := r.Deliver(ctx, db, tx); err != nil {
		t.Fatalf("first swap failed: %+v", err)
	}

	// even a fresh allowance cannot revive the listing
	grantAllowance(t, db, bob.Address(), market.CustodyAddress(), price)
	if _, err := r.Deliver(ctx, db, tx); !market.ErrPairNotFound.Is(err) {
		t.Fatalf("second swap expected %+v but got %+v", market.ErrPairNotFound, err)
	}
}

// A swap whose payment cannot be collected must leave the ledger untouched.
// The listing is deleted before any asset moves, so it is the discard of the
// failed delivery that keeps the pair alive.
func TestSwapTokenFailedPaymentKeepsListing(t *testing.T) {
	alice := weavetest.NewCondition()
	bob := weavetest.NewCondition()

	price := coin.NewCoin(7, 0, "FUN")

	db := store.MemStore()
	migration.MustInitPkg(db, "market", "deed", "allowance", "cash")

	issueDeed(t, db, collection, tokenID, market.CustodyAddress())
	listPair(t, db, collection, tokenID, alice.Address(), price)
	// the allowance matches the price exactly but the wallet is empty
	grantAllowance(t, db, bob.Address(), market.CustodyAddress(), price)

	r, authenticator := newRouter()
	ctx := authenticator.SetConditions(context.Background(), bob)
	tx := &weavetest.Tx{Msg: &market.SwapTokenMsg{
		Metadata:   &weave.Metadata{Schema: 1},
		Collection: collection,
		TokenId:    tokenID,
	}}

	cache := db.CacheWrap()
	if _, err := r.Deliver(ctx, cache, tx); !errors.ErrEmpty.Is(err) {
		t.Fatalf("deliver expected %+v but got %+v", errors.ErrEmpty, err)
	}
	cache.Discard()

	var pair market.Pair
	err := market.NewBucket().One(db, market.PairKey(collection, tokenID, "FUN"), &pair)
	assert.Nil(t, err)
	assert.Equal(t, pair.Owner, alice.Address())

	owner, err := deed.NewController().OwnerOf(db, collection, tokenID)
	assert.Nil(t, err)
	assert.Equal(t, owner, market.CustodyAddress())
}

// A retrieve whose deed transfer fails must leave the listing in place for
// the same reason: the deletion of the failed delivery is discarded.
func TestRetrieveTokenFailedTransferKeepsListing(t *testing.T) {
	alice := weavetest.NewCondition()
	stranger := weavetest.NewCondition()

	price := coin.NewCoin(7, 0, "FUN")

	db := store.MemStore()
	migration.MustInitPkg(db, "market", "deed", "allowance", "cash")

	// the deed is not held by the custody account, so the transfer back to
	// the depositor will be refused
	issueDeed(t, db, collection, tokenID, stranger.Address())
	listPair(t, db, collection, tokenID, alice.Address(), price)

	r, authenticator := newRouter()
	ctx := authenticator.SetConditions(context.Background(), alice)
	tx := &weavetest.Tx{Msg: &market.RetrieveTokenMsg{
		Metadata:   &weave.Metadata{Schema: 1},
		Collection: collection,
		TokenId:    tokenID,
	}}

	cache := db.CacheWrap()
	if _, err := r.Deliver(ctx, cache, tx); !errors.ErrUnauthorized.Is(err) {
		t.Fatalf("deliver expected %+v but got %+v", errors.ErrUnauthorized, err)
	}
	cache.Discard()

	var pair market.Pair
	err := market.NewBucket().One(db, market.PairKey(collection, tokenID, "FUN"), &pair)
	assert.Nil(t, err)
	assert.Equal(t, pair.Owner, alice.Address())
}

func TestUpdatePairPriceHandler(t *testing.T) {
	alice := weavetest.NewCondition()
	stranger := weavetest.NewCondition()

	price := coin.NewCoin(7, 0, "FUN")
	newPrice := coin.NewCoin(9, 0, "FUN")

	cases := map[string]struct {
		setup          func(t *testing.T, db weave.KVStore)
		signer         weave.Condition
		mutator        func(msg *market.UpdatePairPriceMsg)
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, db weave.KVStore)
	}{
		"owner reprices": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
				listPair(t, db, collection, tokenID, alice.Address(), price)
			},
			signer: alice,
			check: func(t *testing.T, db weave.KVStore) {
				var pair market.Pair
				err := market.NewBucket().One(db, market.PairKey(collection, tokenID, "FUN"), &pair)
				assert.Nil(t, err)
				assert.Equal(t, pair.Price.Equals(newPrice), true)
			},
		},
		"pricing ticker is immutable": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
				listPair(t, db, collection, tokenID, alice.Address(), price)
			},
			signer: alice,
			mutator: func(msg *market.UpdatePairPriceMsg) {
				other := coin.NewCoin(9, 0, "OTH")
				msg.NewPrice = &other
			},
			wantCheckErr:   errors.ErrInput,
			wantDeliverErr: errors.ErrInput,
		},
		"stranger cannot reprice": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, market.CustodyAddress())
				listPair(t, db, collection, tokenID, alice.Address(), price)
			},
			signer:         stranger,
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
			check: func(t *testing.T, db weave.KVStore) {
				// a rejected reprice must not touch the stored price
				var pair market.Pair
				err := market.NewBucket().One(db, market.PairKey(collection, tokenID, "FUN"), &pair)
				assert.Nil(t, err)
				assert.Equal(t, pair.Price.Equals(price), true)
			},
		},
		"not listed": {
			signer:         alice,
			wantCheckErr:   market.ErrPairNotFound,
			wantDeliverErr: market.ErrPairNotFound,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db := store.MemStore()
			migration.MustInitPkg(db, "market", "deed", "allowance", "cash")
			if tc.setup != nil {
				tc.setup(t, db)
			}

			r, authenticator := newRouter()
			ctx := context.Background()
			if tc.signer != nil {
				ctx = authenticator.SetConditions(ctx, tc.signer)
			}

			msg := &market.UpdatePairPriceMsg{
				Metadata:   &weave.Metadata{Schema: 1},
				Collection: collection,
				TokenId:    tokenID,
				NewPrice:   &newPrice,
			}
			if tc.mutator != nil {
				tc.mutator(msg)
			}
			tx := &weavetest.Tx{Msg: msg}

			cache := db.CacheWrap()
			if _, err := r.Check(ctx, cache, tx); !tc.wantCheckErr.Is(err) {
				t.Fatalf("check expected %+v but got %+v", tc.wantCheckErr, err)
			}
			cache.Discard()

			if _, err := r.Deliver(ctx, cache, tx); !tc.wantDeliverErr.Is(err) {
				t.Fatalf("deliver expected %+v but got %+v", tc.wantDeliverErr, err)
			}
			if tc.check != nil {
				tc.check(t, cache)
			}
		})
	}
}

func newRouter() (*app.Router, *weavetest.CtxAuth) {
	r := app.NewRouter()
	authenticator := &weavetest.CtxAuth{Key: "auth"}
	auth := x.ChainAuth(authenticator)
	ctrl := cash.NewController(cash.NewBucket())
	market.RegisterRoutes(r, auth, deed.NewController(), allowance.NewController(ctrl))
	return r, authenticator
}

func issueDeed(t *testing.T, db weave.KVStore, collection, tokenID []byte, owner weave.Address) {
	t.Helper()
	d := &deed.Deed{
		Metadata:   &weave.Metadata{Schema: 1},
		Collection: collection,
		TokenId:    tokenID,
		Owner:      owner,
	}
	_, err := deed.NewBucket().Put(db, deed.DeedKey(collection, tokenID), d)
	assert.Nil(t, err)
}

func listPair(t *testing.T, db weave.KVStore, collection, tokenID []byte, owner weave.Address, price coin.Coin) {
	t.Helper()
	pair := &market.Pair{
		Metadata:   &weave.Metadata{Schema: 1},
		Collection: collection,
		TokenId:    tokenID,
		Owner:      owner,
		Price:      &price,
	}
	_, err := market.NewBucket().Put(db, market.PairKey(collection, tokenID, price.Ticker), pair)
	assert.Nil(t, err)
}

func grantAllowance(t *testing.T, db weave.KVStore, holder, spender weave.Address, amount coin.Coin) {
	t.Helper()
	a := &allowance.Allowance{
		Metadata: &weave.Metadata{Schema: 1},
		Holder:   holder,
		Spender:  spender,
		Amount:   &amount,
	}
	_, err := allowance.NewBucket().Put(db, allowance.Key(holder, spender, amount.Ticker), a)
	assert.Nil(t, err)
}

func setBalance(t *testing.T, db weave.KVStore, bank cash.Bucket, addr weave.Address, funds coin.Coin) {
	t.Helper()
	acct, err := cash.WalletWith(addr, &funds)
	assert.Nil(t, err)
	err = bank.Save(db, acct)
	assert.Nil(t, err)
}

func assertBalance(t *testing.T, db weave.KVStore, ctrl cash.Controller, addr weave.Address, want coin.Coin) {
	t.Helper()
	coins, err := ctrl.Balance(db, addr)
	assert.Nil(t, err)
	total, err := coin.CombineCoins(want)
	assert.Nil(t, err)
	assert.Equal(t, coins.Equals(total), true)
}

func assertNotListed(t *testing.T, db weave.KVStore, collection, tokenID []byte) {
	t.Helper()
	var pairs []*market.Pair
	_, err := market.NewBucket().ByIndex(db, "token", market.TokenKey(collection, tokenID), &pairs)
	assert.Nil(t, err)
	assert.Equal(t, len(pairs), 0)
}
