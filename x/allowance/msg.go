package allowance

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
)

func init() {
	migration.MustRegister(1, &ApproveMsg{}, migration.NoModification)
}

const (
	pathApprove = "allowance/approve"
)

var _ weave.Msg = (*ApproveMsg)(nil)

// Path fulfills weave.Msg interface to allow routing
func (ApproveMsg) Path() string {
	return pathApprove
}

// Validate makes sure that this is sensible. A zero amount is valid and
// clears the allowance.
func (m *ApproveMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if err := m.Spender.Validate(); err != nil {
		return errors.Wrap(err, "spender")
	}
	if m.Amount == nil {
		return errors.Wrap(errors.ErrEmpty, "amount")
	}
	if err := m.Amount.Validate(); err != nil {
		return errors.Wrap(err, "amount")
	}
	if !m.Amount.IsNonNegative() {
		return errors.Wrap(errors.ErrAmount, "amount must not be negative")
	}
	return nil
}
