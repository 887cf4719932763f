package deed

import (
	"bytes"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
	"github.com/iov-one/weave/x"
	common "github.com/tendermint/tendermint/libs/common"
)

const (
	issueDeedCost    int64 = 200
	transferDeedCost int64 = 100
)

// ReceiptAck is the only acknowledgement that lets a transfer to a
// registered receiver go through.
var ReceiptAck = []byte("deed/v1/receipt")

// TokenReceiver is implemented by modules that take custody of deeds. The
// hook is invoked after the ownership change; returning an error or anything
// but ReceiptAck aborts the whole transfer.
type TokenReceiver interface {
	OnTokenReceived(db weave.KVStore, operator, from weave.Address, collection, tokenID, auxData []byte) ([]byte, error)
}

// Receivers maps destination addresses, in their string form, to the receipt
// hook that must approve deposits into them.
type Receivers map[string]TokenReceiver

// RegisterRoutes will instantiate and register
// all handlers in this package. A nil issuer means anybody can issue deeds.
func RegisterRoutes(r weave.Registry, auth x.Authenticator, issuer weave.Address, receivers Receivers) {
	r = migration.SchemaMigratingRegistry("deed", r)
	bucket := NewBucket()

	r.Handle(&IssueDeedMsg{}, IssueDeedHandler{auth: auth, bucket: bucket, issuer: issuer})
	r.Handle(&TransferDeedMsg{}, TransferDeedHandler{auth: auth, bucket: bucket, receivers: receivers})
}

// RegisterQuery will register this bucket as "/deeds"
func RegisterQuery(qr weave.QueryRouter) {
	NewBucket().Register("deeds", qr)
}

// IssueDeedHandler brings a new deed into existence.
type IssueDeedHandler struct {
	auth   x.Authenticator
	bucket orm.ModelBucket
	issuer weave.Address
}

var _ weave.Handler = IssueDeedHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h IssueDeedHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: issueDeedCost}, nil
}

// Deliver writes the deed with its initial owner.
func (h IssueDeedHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	deed := &Deed{
		Metadata:   &weave.Metadata{},
		Collection: msg.Collection,
		TokenId:    msg.TokenId,
		Owner:      msg.Owner,
	}
	key := DeedKey(msg.Collection, msg.TokenId)
	if _, err := h.bucket.Put(db, key, deed); err != nil {
		return nil, errors.Wrap(err, "cannot store deed")
	}
	return &weave.DeliverResult{Data: key}, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h IssueDeedHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*IssueDeedMsg, error) {
	var msg IssueDeedMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if h.issuer != nil && !h.auth.HasAddress(ctx, h.issuer) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "issuer signature required")
	}
	switch err := h.bucket.Has(db, DeedKey(msg.Collection, msg.TokenId)); {
	case err == nil:
		return nil, errors.Wrapf(errors.ErrDuplicate, "token %X in collection %X", msg.TokenId, msg.Collection)
	case errors.ErrNotFound.Is(err):
		// All good, the deed does not exist yet.
	default:
		return nil, errors.Wrap(err, "cannot check deed")
	}
	return &msg, nil
}

// TransferDeedHandler moves a deed to another account.
type TransferDeedHandler struct {
	auth      x.Authenticator
	bucket    orm.ModelBucket
	receivers Receivers
}

var _ weave.Handler = TransferDeedHandler{}

// Check just verifies it is properly formed and returns
// the cost of executing it.
func (h TransferDeedHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: transferDeedCost}, nil
}

// Deliver rewrites the owner and, when the destination account has a receipt
// hook, demands the canonical acknowledgement. A missing or wrong
// acknowledgement aborts the delivery, which undoes the ownership change.
func (h TransferDeedHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, deed, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}

	from := deed.Owner
	deed.Owner = msg.To
	key := DeedKey(msg.Collection, msg.TokenId)
	if _, err := h.bucket.Put(db, key, deed); err != nil {
		return nil, errors.Wrap(err, "cannot save deed")
	}

	res := &weave.DeliverResult{}
	if receiver, ok := h.receivers[msg.To.String()]; ok {
		operator := x.AnySigner(ctx, h.auth).Address()
		ack, err := receiver.OnTokenReceived(db, operator, from, msg.Collection, msg.TokenId, msg.AuxData)
		if err != nil {
			return nil, errors.Wrap(err, "receiver rejected deed")
		}
		if !bytes.Equal(ack, ReceiptAck) {
			return nil, errors.Wrapf(ErrNotAcknowledged, "receiver %s", msg.To)
		}
		res.Tags = []common.KVPair{
			{Key: []byte("action"), Value: []byte("TokenReceived")},
			{Key: []byte("operator"), Value: operator},
			{Key: []byte("from"), Value: from},
			{Key: []byte("collection"), Value: msg.Collection},
			{Key: []byte("token_id"), Value: msg.TokenId},
			{Key: []byte("aux_data"), Value: msg.AuxData},
		}
	}
	return res, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h TransferDeedHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*TransferDeedMsg, *Deed, error) {
	var msg TransferDeedMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	var deed Deed
	if err := h.bucket.One(db, DeedKey(msg.Collection, msg.TokenId), &deed); err != nil {
		return nil, nil, errors.Wrap(err, "cannot load deed")
	}
	if !h.auth.HasAddress(ctx, deed.Owner) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "only the deed owner can transfer")
	}
	return &msg, &deed, nil
}
