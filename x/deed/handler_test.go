package deed_test

import (
	"context"
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/app"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/store"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/weavetest/assert"
	"github.com/iov-one/weave/x"

	"github.com/iov-one/tokenmarket/x/deed"
)

var (
	collection = []byte("gallery")
	tokenID    = []byte("mona-lisa")
)

func TestIssueDeedHandler(t *testing.T) {
	alice := weavetest.NewCondition()
	minter := weavetest.NewCondition()
	stranger := weavetest.NewCondition()

	cases := map[string]struct {
		issuer         weave.Address
		setup          func(t *testing.T, db weave.KVStore)
		signer         weave.Condition
		mutator        func(msg *deed.IssueDeedMsg)
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, db weave.KVStore)
	}{
		"open issuance": {
			signer: stranger,
			check: func(t *testing.T, db weave.KVStore) {
				owner, err := deed.NewController().OwnerOf(db, collection, tokenID)
				assert.Nil(t, err)
				assert.Equal(t, owner, alice.Address())
			},
		},
		"issuer signs": {
			issuer: minter.Address(),
			signer: minter,
			check: func(t *testing.T, db weave.KVStore) {
				owner, err := deed.NewController().OwnerOf(db, collection, tokenID)
				assert.Nil(t, err)
				assert.Equal(t, owner, alice.Address())
			},
		},
		"stranger cannot issue": {
			issuer:         minter.Address(),
			signer:         stranger,
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
		},
		"duplicate token": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, stranger.Address())
			},
			signer:         stranger,
			wantCheckErr:   errors.ErrDuplicate,
			wantDeliverErr: errors.ErrDuplicate,
		},
		"missing token id": {
			signer: stranger,
			mutator: func(msg *deed.IssueDeedMsg) {
				msg.TokenId = nil
			},
			wantCheckErr:   errors.ErrEmpty,
			wantDeliverErr: errors.ErrEmpty,
		},
		"missing owner": {
			signer: stranger,
			mutator: func(msg *deed.IssueDeedMsg) {
				msg.Owner = nil
			},
			wantCheckErr:   errors.ErrEmpty,
			wantDeliverErr: errors.ErrEmpty,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db := store.MemStore()
			migration.MustInitPkg(db, "deed")
			if tc.setup != nil {
				tc.setup(t, db)
			}

			r, authenticator := newRouter(tc.issuer, nil)
			ctx := context.Background()
			if tc.signer != nil {
				ctx = authenticator.SetConditions(ctx, tc.signer)
			}

			msg := &deed.IssueDeedMsg{
				Metadata:   &weave.Metadata{Schema: 1},
				Collection: collection,
				TokenId:    tokenID,
				Owner:      alice.Address(),
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

func TestTransferDeedHandler(t *testing.T) {
	alice := weavetest.NewCondition()
	bob := weavetest.NewCondition()
	stranger := weavetest.NewCondition()
	vault := weavetest.NewCondition().Address()

	cases := map[string]struct {
		receiver       *recorder
		setup          func(t *testing.T, db weave.KVStore)
		signer         weave.Condition
		mutator        func(msg *deed.TransferDeedMsg)
		wantCheckErr   *errors.Error
		wantDeliverErr *errors.Error
		check          func(t *testing.T, db weave.KVStore, rec *recorder)
	}{
		"owner transfers": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, alice.Address())
			},
			signer: alice,
			check: func(t *testing.T, db weave.KVStore, rec *recorder) {
				owner, err := deed.NewController().OwnerOf(db, collection, tokenID)
				assert.Nil(t, err)
				assert.Equal(t, owner, bob.Address())
			},
		},
		"stranger cannot transfer": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, alice.Address())
			},
			signer:         stranger,
			wantCheckErr:   errors.ErrUnauthorized,
			wantDeliverErr: errors.ErrUnauthorized,
		},
		"unknown deed": {
			signer:         alice,
			wantCheckErr:   errors.ErrNotFound,
			wantDeliverErr: errors.ErrNotFound,
		},
		"receiver acknowledges": {
			receiver: &recorder{ack: deed.ReceiptAck},
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, alice.Address())
			},
			signer: alice,
			mutator: func(msg *deed.TransferDeedMsg) {
				msg.To = vault
				msg.AuxData = []byte("crate 7")
			},
			check: func(t *testing.T, db weave.KVStore, rec *recorder) {
				owner, err := deed.NewController().OwnerOf(db, collection, tokenID)
				assert.Nil(t, err)
				assert.Equal(t, owner, vault)

				assert.Equal(t, rec.calls, 1)
				assert.Equal(t, rec.operator, alice.Address())
				assert.Equal(t, rec.from, alice.Address())
				assert.Equal(t, rec.auxData, []byte("crate 7"))
			},
		},
		"receiver returns wrong acknowledgement": {
			receiver: &recorder{ack: []byte("nope")},
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, alice.Address())
			},
			signer: alice,
			mutator: func(msg *deed.TransferDeedMsg) {
				msg.To = vault
			},
			wantDeliverErr: deed.ErrNotAcknowledged,
		},
		"receiver rejects": {
			receiver: &recorder{err: errors.ErrState},
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, alice.Address())
			},
			signer: alice,
			mutator: func(msg *deed.TransferDeedMsg) {
				msg.To = vault
			},
			wantDeliverErr: errors.ErrState,
		},
		"aux data too long": {
			setup: func(t *testing.T, db weave.KVStore) {
				issueDeed(t, db, collection, tokenID, alice.Address())
			},
			signer: alice,
			mutator: func(msg *deed.TransferDeedMsg) {
				msg.AuxData = make([]byte, 129)
			},
			wantCheckErr:   errors.ErrInput,
			wantDeliverErr: errors.ErrInput,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			db := store.MemStore()
			migration.MustInitPkg(db, "deed")
			if tc.setup != nil {
				tc.setup(t, db)
			}

			var receivers deed.Receivers
			if tc.receiver != nil {
				receivers = deed.Receivers{vault.String(): tc.receiver}
			}
			r, authenticator := newRouter(nil, receivers)
			ctx := context.Background()
			if tc.signer != nil {
				ctx = authenticator.SetConditions(ctx, tc.signer)
			}

			msg := &deed.TransferDeedMsg{
				Metadata:   &weave.Metadata{Schema: 1},
				Collection: collection,
				TokenId:    tokenID,
				To:         bob.Address(),
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
				tc.check(t, cache, tc.receiver)
			}
		})
	}
}

// A deposit into a hooked account produces TokenReceived tags so that
// off-chain observers can follow custody changes.
func TestTransferDeedEmitsReceiptTags(t *testing.T) {
	alice := weavetest.NewCondition()
	vault := weavetest.NewCondition().Address()

	db := store.MemStore()
	migration.MustInitPkg(db, "deed")
	issueDeed(t, db, collection, tokenID, alice.Address())

	r, authenticator := newRouter(nil, deed.Receivers{
		vault.String(): &recorder{ack: deed.ReceiptAck},
	})
	ctx := authenticator.SetConditions(context.Background(), alice)

	res, err := r.Deliver(ctx, db, &weavetest.Tx{Msg: &deed.TransferDeedMsg{
		Metadata:   &weave.Metadata{Schema: 1},
		Collection: collection,
		TokenId:    tokenID,
		To:         vault,
	}})
	assert.Nil(t, err)

	if len(res.Tags) == 0 {
		t.Fatal("expected receipt tags")
	}
	assert.Equal(t, res.Tags[0].Key, []byte("action"))
	assert.Equal(t, res.Tags[0].Value, []byte("TokenReceived"))
}

// recorder is a test receipt hook. It remembers the last call and answers
// with a fixed acknowledgement or error.
type recorder struct {
	ack      []byte
	err      error
	calls    int
	operator weave.Address
	from     weave.Address
	auxData  []byte
}

var _ deed.TokenReceiver = (*recorder)(nil)

func (r *recorder) OnTokenReceived(db weave.KVStore, operator, from weave.Address, collection, tokenID, auxData []byte) ([]byte, error) {
	r.calls++
	r.operator = operator
	r.from = from
	r.auxData = auxData
	if r.err != nil {
		return nil, r.err
	}
	return r.ack, nil
}

func newRouter(issuer weave.Address, receivers deed.Receivers) (*app.Router, *weavetest.CtxAuth) {
	r := app.NewRouter()
	authenticator := &weavetest.CtxAuth{Key: "auth"}
	deed.RegisterRoutes(r, x.ChainAuth(authenticator), issuer, receivers)
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
