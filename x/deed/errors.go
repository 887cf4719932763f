package deed

import (
	"github.com/iov-one/weave/errors"
)

var (
	// ErrNotAcknowledged is returned when a transfer to a registered
	// receiver is not answered with the canonical acknowledgement.
	ErrNotAcknowledged = errors.Register(1110, "transfer not acknowledged")
)
