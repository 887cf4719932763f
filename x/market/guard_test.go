package market

import (
	"testing"

	"github.com/iov-one/weave/weavetest/assert"
)

func TestGuardRejectsNestedAcquire(t *testing.T) {
	var g guard

	release, err := g.acquire()
	assert.Nil(t, err)

	if _, err := g.acquire(); !ErrReentrancy.Is(err) {
		t.Fatalf("nested acquire expected %+v but got %+v", ErrReentrancy, err)
	}

	release()

	// after a release the guard is free again
	release, err = g.acquire()
	assert.Nil(t, err)
	release()
}
