package market

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
)

func init() {
	migration.MustRegister(1, &CreatePairMsg{}, migration.NoModification)
	migration.MustRegister(1, &RetrieveTokenMsg{}, migration.NoModification)
	migration.MustRegister(1, &SwapTokenMsg{}, migration.NoModification)
	migration.MustRegister(1, &UpdatePairPriceMsg{}, migration.NoModification)
}

const (
	pathCreatePair      = "market/create_pair"
	pathRetrieveToken   = "market/retrieve_token"
	pathSwapToken       = "market/swap_token"
	pathUpdatePairPrice = "market/update_pair_price"
)

var _ weave.Msg = (*CreatePairMsg)(nil)
var _ weave.Msg = (*RetrieveTokenMsg)(nil)
var _ weave.Msg = (*SwapTokenMsg)(nil)
var _ weave.Msg = (*UpdatePairPriceMsg)(nil)

// ROUTING, Path method fulfills weave.Msg interface to allow routing

func (CreatePairMsg) Path() string {
	return pathCreatePair
}

func (RetrieveTokenMsg) Path() string {
	return pathRetrieveToken
}

func (SwapTokenMsg) Path() string {
	return pathSwapToken
}

func (UpdatePairPriceMsg) Path() string {
	return pathUpdatePairPrice
}

// VALIDATION, Validate method makes sure basic rules are enforced upon input data

func (m *CreatePairMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if err := validateToken(m.Collection, m.TokenId); err != nil {
		return err
	}
	return validatePrice(m.Price)
}

func (m *RetrieveTokenMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	return validateToken(m.Collection, m.TokenId)
}

func (m *SwapTokenMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	return validateToken(m.Collection, m.TokenId)
}

func (m *UpdatePairPriceMsg) Validate() error {
	if err := m.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if err := validateToken(m.Collection, m.TokenId); err != nil {
		return err
	}
	return validatePrice(m.NewPrice)
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

// validatePrice makes sure a price is a well formed, non-negative amount of a
// single token. Zero is a valid price.
func validatePrice(price *coin.Coin) error {
	if price == nil {
		return errors.Wrap(errors.ErrEmpty, "price")
	}
	if err := price.Validate(); err != nil {
		return errors.Wrap(err, "price")
	}
	if !price.IsNonNegative() {
		return errors.Wrap(errors.ErrAmount, "price must not be negative")
	}
	return nil
}
