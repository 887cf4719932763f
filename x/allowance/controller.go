package allowance

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/orm"
	"github.com/iov-one/weave/x/cash"
)

// Controller gives other modules read and pull access to allowances. Pulled
// funds move through the cash controller, so wallet bookkeeping stays in one
// place.
type Controller struct {
	bucket orm.ModelBucket
	mover  cash.CoinMover
}

// NewController returns an allowance controller moving funds with the given
// cash controller.
func NewController(mover cash.CoinMover) *Controller {
	return &Controller{bucket: NewBucket(), mover: mover}
}

// Allowance returns the standing authorization a holder granted a spender
// for one token. No grant means a zero allowance, not an error.
func (c *Controller) Allowance(db weave.ReadOnlyKVStore, holder, spender weave.Address, ticker string) (coin.Coin, error) {
	var a Allowance
	switch err := c.bucket.One(db, Key(holder, spender, ticker), &a); {
	case err == nil:
		return *a.Amount, nil
	case errors.ErrNotFound.Is(err):
		return coin.Coin{Ticker: ticker}, nil
	default:
		return coin.Coin{}, errors.Wrap(err, "cannot load allowance")
	}
}

// Pull consumes amount from the allowance the holder granted the spender and
// moves the funds from the holder to dest. The allowance record is reduced,
// or deleted when fully used, before the wallet transfer runs; both belong
// to the same delivery and are discarded together on failure.
func (c *Controller) Pull(db weave.KVStore, holder, spender, dest weave.Address, amount coin.Coin) error {
	if !amount.IsPositive() {
		return errors.Wrap(errors.ErrAmount, "pull amount must be positive")
	}
	key := Key(holder, spender, amount.Ticker)
	var a Allowance
	if err := c.bucket.One(db, key, &a); err != nil {
		if errors.ErrNotFound.Is(err) {
			return errors.Wrapf(errors.ErrAmount, "no %s allowance", amount.Ticker)
		}
		return errors.Wrap(err, "cannot load allowance")
	}
	if !a.Amount.IsGTE(amount) {
		return errors.Wrapf(errors.ErrAmount, "allowance %s below %s", a.Amount, amount)
	}

	rest, err := a.Amount.Subtract(amount)
	if err != nil {
		return errors.Wrap(err, "cannot reduce allowance")
	}
	if rest.IsZero() {
		if err := c.bucket.Delete(db, key); err != nil {
			return errors.Wrap(err, "cannot clear allowance")
		}
	} else {
		a.Amount = &rest
		if _, err := c.bucket.Put(db, key, &a); err != nil {
			return errors.Wrap(err, "cannot save allowance")
		}
	}

	return c.mover.MoveCoins(db, holder, dest, amount)
}
