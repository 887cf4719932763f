package allowance_test

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
)

func TestApproveHandler(t *testing.T) {
	alice := weavetest.NewCondition()
	spender := weavetest.NewCondition().Address()

	cases := map[string]struct {
		setup          func(t *testing.T, db weave.KVStore)
		signer         weave.Condition
		amount         coin.Coin
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		want           coin.Coin
	}{
		"set a fresh allowance": {
			signer: alice,
			amount: coin.NewCoin(10, 0, "FUN"),
			want:   coin.NewCoin(10, 0, "FUN"),
		},
		"overwrite replaces, it does not add": {
			setup: func(t *testing.T, db weave.KVStore) {
				grant(t, db, alice.Address(), spender, coin.NewCoin(10, 0, "FUN"))
			},
			signer: alice,
			amount: coin.NewCoin(3, 0, "FUN"),
			want:   coin.NewCoin(3, 0, "FUN"),
		},
		"zero amount clears": {
			setup: func(t *testing.T, db weave.KVStore) {
				grant(t, db, alice.Address(), spender, coin.NewCoin(10, 0, "FUN"))
			},
			signer: alice,
			amount: coin.NewCoin(0, 0, "FUN"),
			want:   coin.NewCoin(0, 0, "FUN"),
		},
		"clearing an absent allowance is a no-op": {
			signer: alice,
			amount: coin.NewCoin(0, 0, "FUN"),
			want:   coin.NewCoin(0, 0, "FUN"),
		},
		"negative amount": {
			signer:         alice,
			amount:         coin.NewCoin(-1, 0, "FUN"),
			wantCheckErr:   errors.ErrAmount,
			wantDeliverErr: errors.ErrAmount,
		},
		"no signer": {
			amount:         coin.NewCoin(10, 0, "FUN"),
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db := store.MemStore()
			migration.MustInitPkg(db, "allowance", "cash")
			if tc.setup != nil {
				tc.setup(t, db)
			}

			r := app.NewRouter()
			authenticator := &weavetest.CtxAuth{Key: "auth"}
			allowance.RegisterRoutes(r, x.ChainAuth(authenticator))

			ctx := context.Background()
			if tc.signer != nil {
				ctx = authenticator.SetConditions(ctx, tc.signer)
			}

			tx := &weavetest.Tx{Msg: &allowance.ApproveMsg{
				Metadata: &weave.Metadata{Schema: 1},
				Spender:  spender,
				Amount:   &tc.amount,
			}}

			cache := db.CacheWrap()
			if _, err := r.Check(ctx, cache, tx); !tc.wantCheckErr.Is(err) {
				t.Fatalf("check expected %+v but got %+v", tc.wantCheckErr, err)
			}
			cache.Discard()

			if _, err := r.Deliver(ctx, cache, tx); !tc.wantDeliverErr.Is(err) {
				t.Fatalf("deliver expected %+v but got %+v", tc.wantDeliverErr, err)
			}
			if tc.wantDeliverErr != nil {
				return
			}

			ctrl := allowance.NewController(cashController())
			got, err := ctrl.Allowance(cache, alice.Address(), spender, "FUN")
			assert.Nil(t, err)
			assert.Equal(t, got.Equals(tc.want), true)
		})
	}
}

func TestControllerAllowanceDefaultsToZero(t *testing.T) {
	db := store.MemStore()
	migration.MustInitPkg(db, "allowance", "cash")

	ctrl := allowance.NewController(cashController())
	got, err := ctrl.Allowance(db,
		weavetest.NewCondition().Address(),
		weavetest.NewCondition().Address(),
		"FUN")
	assert.Nil(t, err)
	assert.Equal(t, got.IsZero(), true)
	assert.Equal(t, got.Ticker, "FUN")
}

func TestControllerPull(t *testing.T) {
	alice := weavetest.NewCondition().Address()
	spender := weavetest.NewCondition().Address()
	dest := weavetest.NewCondition().Address()

	cases := map[string]struct {
		granted   *coin.Coin
		funds     *coin.Coin
		pull      coin.Coin
		wantErr   *errors.Error
		wantRest  coin.Coin
		wantMoved coin.Coin
	}{
		"exact pull deletes the record": {
			granted:   coinp(10, 0, "FUN"),
			funds:     coinp(10, 0, "FUN"),
			pull:      coin.NewCoin(10, 0, "FUN"),
			wantRest:  coin.NewCoin(0, 0, "FUN"),
			wantMoved: coin.NewCoin(10, 0, "FUN"),
		},
		"partial pull leaves the remainder": {
			granted:   coinp(10, 0, "FUN"),
			funds:     coinp(10, 0, "FUN"),
			pull:      coin.NewCoin(4, 0, "FUN"),
			wantRest:  coin.NewCoin(6, 0, "FUN"),
			wantMoved: coin.NewCoin(4, 0, "FUN"),
		},
		"insufficient allowance": {
			granted: coinp(3, 0, "FUN"),
			funds:   coinp(10, 0, "FUN"),
			pull:    coin.NewCoin(4, 0, "FUN"),
			wantErr: errors.ErrAmount,
		},
		"no allowance": {
			funds:   coinp(10, 0, "FUN"),
			pull:    coin.NewCoin(4, 0, "FUN"),
			wantErr: errors.ErrAmount,
		},
		"wrong ticker": {
			granted: coinp(10, 0, "FUN"),
			funds:   coinp(10, 0, "FUN"),
			pull:    coin.NewCoin(4, 0, "OTH"),
			wantErr: errors.ErrAmount,
		},
		"zero pull": {
			granted: coinp(10, 0, "FUN"),
			funds:   coinp(10, 0, "FUN"),
			pull:    coin.NewCoin(0, 0, "FUN"),
			wantErr: errors.ErrAmount,
		},
		"allowance without funds": {
			granted: coinp(10, 0, "FUN"),
			pull:    coin.NewCoin(4, 0, "FUN"),
			wantErr: errors.ErrEmpty,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db := store.MemStore()
			migration.MustInitPkg(db, "allowance", "cash")

			if tc.granted != nil {
				grant(t, db, alice, spender, *tc.granted)
			}
			bank := cash.NewBucket()
			if tc.funds != nil {
				acct, err := cash.WalletWith(alice, tc.funds)
				assert.Nil(t, err)
				assert.Nil(t, bank.Save(db, acct))
			}

			mover := cash.NewController(bank)
			ctrl := allowance.NewController(mover)

			if err := ctrl.Pull(db, alice, spender, dest, tc.pull); !tc.wantErr.Is(err) {
				t.Fatalf("pull expected %+v but got %+v", tc.wantErr, err)
			}
			if tc.wantErr != nil {
				return
			}

			rest, err := ctrl.Allowance(db, alice, spender, "FUN")
			assert.Nil(t, err)
			assert.Equal(t, rest.Equals(tc.wantRest), true)

			coins, err := mover.Balance(db, dest)
			assert.Nil(t, err)
			want, err := coin.CombineCoins(tc.wantMoved)
			assert.Nil(t, err)
			assert.Equal(t, coins.Equals(want), true)
		})
	}
}

func cashController() cash.Controller {
	return cash.NewController(cash.NewBucket())
}

func coinp(whole int64, fractional int64, ticker string) *coin.Coin {
	c := coin.NewCoin(whole, fractional, ticker)
	return &c
}

func grant(t *testing.T, db weave.KVStore, holder, spender weave.Address, amount coin.Coin) {
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
