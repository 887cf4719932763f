package allowance

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
	"github.com/iov-one/weave/x"
)

const (
	approveCost int64 = 50
)

// RegisterRoutes will instantiate and register
// all handlers in this package
func RegisterRoutes(r weave.Registry, auth x.Authenticator) {
	r = migration.SchemaMigratingRegistry("allowance", r)

	r.Handle(&ApproveMsg{}, ApproveHandler{auth: auth, bucket: NewBucket()})
}

// RegisterQuery will register this bucket as "/allowances"
func RegisterQuery(qr weave.QueryRouter) {
	NewBucket().Register("allowances", qr)
}

// ApproveHandler sets, overwrites or clears a standing allowance of the main
// signer.
type ApproveHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
}

var _ weave.Handler = ApproveHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h ApproveHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: approveCost}, nil
}

// Deliver writes the allowance, or deletes it when the amount is zero.
func (h ApproveHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, holder, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	key := Key(holder, msg.Spender, msg.Amount.Ticker)
	if msg.Amount.IsZero() {
		if err := h.bucket.Delete(db, key); err != nil && !errors.ErrNotFound.Is(err) {
			return nil, errors.Wrap(err, "cannot clear allowance")
		}
		return &weave.DeliverResult{}, nil
	}

	allowance := &Allowance{
		Metadata: &weave.Metadata{},
		Holder:   holder,
		Spender:  msg.Spender,
		Amount:   msg.Amount,
	}
	if _, err := h.bucket.Put(db, key, allowance); err != nil {
		return nil, errors.Wrap(err, "cannot store allowance")
	}
	return &weave.DeliverResult{Data: key}, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h ApproveHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*ApproveMsg, weave.Address, error) {
	var msg ApproveMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	holder := x.AnySigner(ctx, h.auth)
	if holder == nil {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	return &msg, holder.Address(), nil
}
