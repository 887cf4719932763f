package deed

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
)

func init() {
	migration.MustRegister(1, &IssueDeedMsg{}, migration.NoModification)
	migration.MustRegister(1, &TransferDeedMsg{}, migration.NoModification)
}

const (
	pathIssueDeed    = "deed/issue"
	pathTransferDeed = "deed/transfer"

	maxAuxDataSize = 128
)

var _ weave.Msg = (*IssueDeedMsg)(nil)
var _ weave.Msg = (*TransferDeedMsg)(nil)

// Path fulfills weave.Msg interface to allow routing
func (IssueDeedMsg) Path() string {
	return pathIssueDeed
}

// Path fulfills weave.Msg interface to allow routing
func (TransferDeedMsg) Path() string {
	return pathTransferDeed
}

// Validate makes sure that this is sensible
func (m *IssueDeedMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if err := validateToken(m.Collection, m.TokenId); err != nil {
		return err
	}
	return errors.Wrap(m.Owner.Validate(), "owner")
}

// Validate makes sure that this is sensible
func (m *TransferDeedMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if err := validateToken(m.Collection, m.TokenId); err != nil {
		return err
	}
	if err := m.To.Validate(); err != nil {
		return errors.Wrap(err, "to")
	}
	if len(m.AuxData) > maxAuxDataSize {
		return errors.Wrapf(errors.ErrInput, "aux data longer than %d bytes", maxAuxDataSize)
	}
	return nil
}

func validateToken(collection, tokenID []byte) error {
	if len(collection) == 0 {
		return errors.Wrap(errors.ErrEmpty, "collection")
	}
	if len(tokenID) == 0 {
		return errors.Wrap(errors.ErrEmpty, "token id")
	}
	return nil
}
