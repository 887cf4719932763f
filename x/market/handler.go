package market

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
	"github.com/iov-one/weave/x"
	common "github.com/tendermint/tendermint/libs/common"
)

const (
	// pay listing cost up-front
	createPairCost      int64 = 300
	retrieveTokenCost   int64 = 0
	swapTokenCost       int64 = 100
	updatePairPriceCost int64 = 50
)

// DeedController is the subset of the deed registry the market relies on:
// asking who holds a deed and moving a deed between accounts. A transfer
// failure must surface as an error so the whole delivery aborts.
type DeedController interface {
	OwnerOf(db weave.ReadOnlyKVStore, collection, tokenID []byte) (weave.Address, error)
	Transfer(db weave.KVStore, collection, tokenID []byte, from, to weave.Address) error
}

// AllowanceController is the subset of the fungible token registry the
// market relies on: reading a standing allowance and pulling funds within
// its bounds.
type AllowanceController interface {
	Allowance(db weave.ReadOnlyKVStore, holder, spender weave.Address, ticker string) (coin.Coin, error)
	Pull(db weave.KVStore, holder, spender, dest weave.Address, amount coin.Coin) error
}

// RegisterRoutes will instantiate and register
// all handlers in this package
func RegisterRoutes(r weave.Registry, auth x.Authenticator, deeds DeedController, allowances AllowanceController) {
	r = migration.SchemaMigratingRegistry("market", r)
	bucket := NewBucket()

	r.Handle(&CreatePairMsg{}, CreatePairHandler{auth: auth, bucket: bucket, deeds: deeds})
	r.Handle(&RetrieveTokenMsg{}, RetrieveTokenHandler{auth: auth, bucket: bucket, deeds: deeds})
	r.Handle(&SwapTokenMsg{}, SwapTokenHandler{auth: auth, bucket: bucket, deeds: deeds, allowances: allowances})
	r.Handle(&UpdatePairPriceMsg{}, UpdatePairPriceHandler{auth: auth, bucket: bucket})
}

// RegisterQuery will register this bucket as "/pairs"
func RegisterQuery(qr weave.QueryRouter) {
	NewBucket().Register("pairs", qr)
}

// CreatePairHandler lists a custodied deed at a price.
type CreatePairHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	deeds  DeedController
}

var _ weave.Handler = CreatePairHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h CreatePairHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: createPairCost}, nil
}

// Deliver writes the pair if the deed is in market custody and the token is
// not listed yet.
func (h CreatePairHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	release, err := lifecycleGuard.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	msg, owner, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	pair := &Pair{
		Metadata:   &weave.Metadata{},
		Collection: msg.Collection,
		TokenId:    msg.TokenId,
		Owner:      owner,
		Price:      msg.Price,
	}
	key := PairKey(msg.Collection, msg.TokenId, msg.Price.Ticker)
	if _, err := h.bucket.Put(db, key, pair); err != nil {
		return nil, errors.Wrap(err, "cannot store pair")
	}

	return &weave.DeliverResult{
		Data: key,
		Tags: pairTags("PairCreated", pair,
			common.KVPair{Key: []byte("ticker"), Value: []byte(pair.Price.Ticker)},
			common.KVPair{Key: []byte("owner"), Value: owner},
			common.KVPair{Key: []byte("price"), Value: []byte(pair.Price.String())},
		),
	}, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h CreatePairHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*CreatePairMsg, weave.Address, error) {
	var msg CreatePairMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}

	owner := x.AnySigner(ctx, h.auth)
	if owner == nil {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}

	// A token can be listed at most once, regardless of the ticker.
	var existing []*Pair
	if _, err := h.bucket.ByIndex(db, "token", TokenKey(msg.Collection, msg.TokenId), &existing); err != nil {
		return nil, nil, errors.Wrap(err, "cannot query pairs")
	}
	if len(existing) != 0 {
		return nil, nil, errors.Wrapf(ErrDuplicatePair, "token %X in collection %X", msg.TokenId, msg.Collection)
	}

	// Only deeds already parked in the custody account can be listed.
	holder, err := h.deeds.OwnerOf(db, msg.Collection, msg.TokenId)
	if err != nil {
		if errors.ErrNotFound.Is(err) {
			return nil, nil, errors.Wrap(ErrNotCustodied, "unknown deed")
		}
		return nil, nil, errors.Wrap(err, "cannot resolve deed owner")
	}
	if !CustodyAddress().Equals(holder) {
		return nil, nil, errors.Wrap(ErrNotCustodied, "deed is not held by the market")
	}

	return &msg, owner.Address(), nil
}

// RetrieveTokenHandler returns a listed deed to its depositor.
type RetrieveTokenHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	deeds  DeedController
}

var _ weave.Handler = RetrieveTokenHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h RetrieveTokenHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: retrieveTokenCost}, nil
}

// Deliver removes the listing and moves the deed from custody back to the
// depositor. The listing is removed first; a failed deed transfer aborts the
// delivery and the store discards the deletion together with it.
func (h RetrieveTokenHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	release, err := lifecycleGuard.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	msg, pair, key, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	if err := h.bucket.Delete(db, key); err != nil {
		return nil, errors.Wrap(err, "cannot delete pair")
	}
	if err := h.deeds.Transfer(db, msg.Collection, msg.TokenId, CustodyAddress(), pair.Owner); err != nil {
		return nil, errors.Wrap(err, "cannot return deed")
	}

	return &weave.DeliverResult{
		Tags: pairTags("TokenRetrieved", pair,
			common.KVPair{Key: []byte("owner"), Value: pair.Owner},
		),
	}, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h RetrieveTokenHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*RetrieveTokenMsg, *Pair, []byte, error) {
	var msg RetrieveTokenMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, nil, errors.Wrap(err, "load msg")
	}
	pair, key, err := loadPair(h.bucket, db, msg.Collection, msg.TokenId)
	if err != nil {
		return nil, nil, nil, err
	}
	if !h.auth.HasAddress(ctx, pair.Owner) {
		return nil, nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the depositor can retrieve")
	}
	return &msg, pair, key, nil
}

// SwapTokenHandler settles a listing: payment to the depositor, deed to the
// buyer.
type SwapTokenHandler struct {
	auth       x.Authenticator
	bucket     orm.ModelBucket
	deeds      DeedController
	allowances AllowanceController
}

var _ weave.Handler = SwapTokenHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h SwapTokenHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: swapTokenCost}, nil
}

// Deliver removes the listing, pulls the payment from the buyer to the
// depositor and hands the deed to the buyer. The listing is removed before
// any asset moves; if either transfer fails the whole delivery aborts and
// the store discards the deletion, so a pair can never settle twice.
func (h SwapTokenHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	release, err := lifecycleGuard.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	msg, pair, key, buyer, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	if err := h.bucket.Delete(db, key); err != nil {
		return nil, errors.Wrap(err, "cannot delete pair")
	}
	// Payment first. A free listing has nothing to pull.
	if !pair.Price.IsZero() {
		if err := h.allowances.Pull(db, buyer, CustodyAddress(), pair.Owner, *pair.Price); err != nil {
			return nil, errors.Wrap(err, "cannot collect payment")
		}
	}
	if err := h.deeds.Transfer(db, msg.Collection, msg.TokenId, CustodyAddress(), buyer); err != nil {
		return nil, errors.Wrap(err, "cannot hand over deed")
	}

	return &weave.DeliverResult{
		Tags: pairTags("Swapped", pair,
			common.KVPair{Key: []byte("ticker"), Value: []byte(pair.Price.Ticker)},
			common.KVPair{Key: []byte("from"), Value: buyer},
			common.KVPair{Key: []byte("to"), Value: pair.Owner},
			common.KVPair{Key: []byte("price"), Value: []byte(pair.Price.String())},
		),
	}, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h SwapTokenHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*SwapTokenMsg, *Pair, []byte, weave.Address, error) {
	var msg SwapTokenMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "load msg")
	}
	pair, key, err := loadPair(h.bucket, db, msg.Collection, msg.TokenId)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	signer := x.AnySigner(ctx, h.auth)
	if signer == nil {
		return nil, nil, nil, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	buyer := signer.Address()

	// The buyer must authorize the exact price, no less and no more.
	granted, err := h.allowances.Allowance(db, buyer, CustodyAddress(), pair.Price.Ticker)
	if err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "cannot resolve allowance")
	}
	if !granted.Equals(*pair.Price) {
		return nil, nil, nil, nil, errors.Wrapf(ErrAllowanceMismatch, "granted %s, price %s", granted, pair.Price)
	}

	return &msg, pair, key, buyer, nil
}

// UpdatePairPriceHandler changes the price of a listing.
type UpdatePairPriceHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
}

var _ weave.Handler = UpdatePairPriceHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h UpdatePairPriceHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: updatePairPriceCost}, nil
}

// Deliver overwrites the price in place. All other pair fields are
// immutable.
func (h UpdatePairPriceHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	release, err := lifecycleGuard.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	msg, pair, key, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	oldPrice := pair.Price
	pair.Price = msg.NewPrice
	if _, err := h.bucket.Put(db, key, pair); err != nil {
		return nil, errors.Wrap(err, "cannot save pair")
	}

	return &weave.DeliverResult{
		Tags: pairTags("ERC20TokenPriceChanged", pair,
			common.KVPair{Key: []byte("old_price"), Value: []byte(oldPrice.String())},
			common.KVPair{Key: []byte("new_price"), Value: []byte(msg.NewPrice.String())},
		),
	}, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h UpdatePairPriceHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*UpdatePairPriceMsg, *Pair, []byte, error) {
	var msg UpdatePairPriceMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, nil, errors.Wrap(err, "load msg")
	}
	pair, key, err := loadPair(h.bucket, db, msg.Collection, msg.TokenId)
	if err != nil {
		return nil, nil, nil, err
	}
	if !h.auth.HasAddress(ctx, pair.Owner) {
		return nil, nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the depositor can change the price")
	}
	// The pricing token is part of the pair identity and cannot change.
	if msg.NewPrice.Ticker != pair.Price.Ticker {
		return nil, nil, nil, errors.Wrapf(errors.ErrInput, "pricing ticker %q cannot be changed", pair.Price.Ticker)
	}
	return &msg, pair, key, nil
}

// loadPair finds the listing of a token through the secondary index,
// re-derives the primary key and loads the authoritative record.
func loadPair(bucket orm.ModelBucket, db weave.ReadOnlyKVStore, collection, tokenID []byte) (*Pair, []byte, error) {
	var pairs []*Pair
	if _, err := bucket.ByIndex(db, "token", TokenKey(collection, tokenID), &pairs); err != nil {
		return nil, nil, errors.Wrap(err, "cannot query pairs")
	}
	if len(pairs) == 0 {
		return nil, nil, errors.Wrapf(ErrPairNotFound, "token %X in collection %X is not listed", tokenID, collection)
	}

	key := PairKey(collection, tokenID, pairs[0].Price.Ticker)
	var pair Pair
	if err := bucket.One(db, key, &pair); err != nil {
		if errors.ErrNotFound.Is(err) {
			return nil, nil, errors.Wrapf(ErrPairNotFound, "token %X in collection %X is not listed", tokenID, collection)
		}
		return nil, nil, errors.Wrap(err, "cannot load pair")
	}
	return &pair, key, nil
}

func pairTags(action string, pair *Pair, extra ...common.KVPair) []common.KVPair {
	tags := []common.KVPair{
		{Key: []byte("action"), Value: []byte(action)},
		{Key: []byte("collection"), Value: pair.Collection},
		{Key: []byte("token_id"), Value: pair.TokenId},
	}
	return append(tags, extra...)
}
