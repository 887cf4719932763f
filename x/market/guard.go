package market

import (
	"sync/atomic"

	"github.com/iov-one/weave/errors"
)

// lifecycleGuard serializes all pair lifecycle deliveries in this process.
// A delivery hands control to other modules while moving assets; none of
// them may mutate the pair ledger through a nested lifecycle call and
// observe it half updated.
var lifecycleGuard guard

type guard struct {
	busy int32
}

// acquire claims the guard and returns the release callback. A nested or
// concurrent acquisition is rejected, never blocked. Callers must release
// on every exit path.
func (g *guard) acquire() (func(), error) {
	if !atomic.CompareAndSwapInt32(&g.busy, 0, 1) {
		return nil, errors.Wrap(ErrReentrancy, "lifecycle operation in progress")
	}
	return func() { atomic.StoreInt32(&g.busy, 0) }, nil
}
