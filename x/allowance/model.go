package allowance

import (
	"encoding/binary"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
)

func init() {
	migration.MustRegister(1, &Allowance{}, migration.NoModification)
}

var _ orm.CloneableData = (*Allowance)(nil)

// Validate ensures the allowance is valid. Stored allowances are always
// positive, a zero grant is expressed by deleting the record.
func (a *Allowance) Validate() error {
	if err := a.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if err := a.Holder.Validate(); err != nil {
		return errors.Wrap(err, "holder")
	}
	if err := a.Spender.Validate(); err != nil {
		return errors.Wrap(err, "spender")
	}
	if a.Amount == nil {
		return errors.Wrap(errors.ErrEmpty, "amount")
	}
	if err := a.Amount.Validate(); err != nil {
		return errors.Wrap(err, "amount")
	}
	if !a.Amount.IsPositive() {
		return errors.Wrap(errors.ErrAmount, "amount must be positive")
	}
	return nil
}

// Copy makes a new allowance with the same values.
func (a *Allowance) Copy() orm.CloneableData {
	return &Allowance{
		Metadata: a.Metadata.Copy(),
		Holder:   a.Holder,
		Spender:  a.Spender,
		Amount:   a.Amount.Clone(),
	}
}

// Key is the ledger key of an allowance. Holder and spender are length
// prefixed so different (holder, spender, ticker) tuples can never share a
// key.
func Key(holder, spender weave.Address, ticker string) []byte {
	key := make([]byte, 0, 8+len(holder)+len(spender)+len(ticker))
	for _, part := range [][]byte{holder, spender} {
		var ln [4]byte
		binary.BigEndian.PutUint32(ln[:], uint32(len(part)))
		key = append(key, ln[:]...)
		key = append(key, part...)
	}
	return append(key, ticker...)
}

// NewBucket returns a bucket for storing allowances.
func NewBucket() orm.ModelBucket {
	b := orm.NewModelBucket("allow", &Allowance{})
	return migration.NewModelBucket("allowance", b)
}
