package market

import (
	"github.com/iov-one/weave/errors"
)

var (
	// ErrDuplicatePair is returned when creating a pair for a token that
	// is already listed.
	ErrDuplicatePair = errors.Register(1100, "duplicate pair")

	// ErrNotCustodied is returned when creating a pair for a deed that is
	// not held by the market custody account.
	ErrNotCustodied = errors.Register(1101, "deed not in market custody")

	// ErrPairNotFound is returned when operating on a token that is not
	// listed.
	ErrPairNotFound = errors.Register(1102, "pair not found")

	// ErrAllowanceMismatch is returned when the buyer's standing allowance
	// does not equal the listed price exactly.
	ErrAllowanceMismatch = errors.Register(1103, "allowance does not match price")

	// ErrReentrancy is returned when a lifecycle operation is entered
	// while another one is still executing.
	ErrReentrancy = errors.Register(1104, "reentrant lifecycle call")
)
