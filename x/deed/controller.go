package deed

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/orm"
)

// Controller gives other modules direct access to the deed registry. The
// caller is trusted to have authorized the movement; message level
// authentication stays in the handlers.
type Controller struct {
	bucket orm.ModelBucket
}

// NewController returns a deed controller working on the registry bucket.
func NewController() *Controller {
	return &Controller{bucket: NewBucket()}
}

// OwnerOf returns the current holder of a deed. A deed that was never issued
// results in ErrNotFound.
func (c *Controller) OwnerOf(db weave.ReadOnlyKVStore, collection, tokenID []byte) (weave.Address, error) {
	var deed Deed
	if err := c.bucket.One(db, DeedKey(collection, tokenID), &deed); err != nil {
		return nil, errors.Wrap(err, "cannot load deed")
	}
	return deed.Owner, nil
}

// Transfer moves a deed from one account to another. It fails when from is
// not the current holder, which makes a stale caller abort instead of
// overwriting ownership.
func (c *Controller) Transfer(db weave.KVStore, collection, tokenID []byte, from, to weave.Address) error {
	key := DeedKey(collection, tokenID)
	var deed Deed
	if err := c.bucket.One(db, key, &deed); err != nil {
		return errors.Wrap(err, "cannot load deed")
	}
	if !deed.Owner.Equals(from) {
		return errors.Wrapf(errors.ErrUnauthorized, "%s does not hold the deed", from)
	}
	if err := to.Validate(); err != nil {
		return errors.Wrap(err, "to")
	}
	deed.Owner = to
	if _, err := c.bucket.Put(db, key, &deed); err != nil {
		return errors.Wrap(err, "cannot save deed")
	}
	return nil
}
