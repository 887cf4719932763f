package deed

import (
	"encoding/binary"

	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
)

func init() {
	migration.MustRegister(1, &Deed{}, migration.NoModification)
}

var _ orm.CloneableData = (*Deed)(nil)

// Validate ensures the deed is valid.
func (d *Deed) Validate() error {
	if err := d.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if len(d.Collection) == 0 {
		return errors.Wrap(errors.ErrEmpty, "collection")
	}
	if len(d.TokenId) == 0 {
		return errors.Wrap(errors.ErrEmpty, "token id")
	}
	return errors.Wrap(d.Owner.Validate(), "owner")
}

// Copy makes a new deed with the same values.
func (d *Deed) Copy() orm.CloneableData {
	return &Deed{
		Metadata:   d.Metadata.Copy(),
		Collection: append([]byte(nil), d.Collection...),
		TokenId:    append([]byte(nil), d.TokenId...),
		Owner:      d.Owner,
	}
}

// DeedKey is the ledger key of a deed. The collection is length prefixed so
// two different (collection, token id) tuples can never share a key.
func DeedKey(collection, tokenID []byte) []byte {
	var ln [4]byte
	binary.BigEndian.PutUint32(ln[:], uint32(len(collection)))
	key := make([]byte, 0, len(ln)+len(collection)+len(tokenID))
	key = append(key, ln[:]...)
	key = append(key, collection...)
	return append(key, tokenID...)
}

// NewBucket returns a bucket for storing deeds, indexed by owner.
func NewBucket() orm.ModelBucket {
	b := orm.NewModelBucket("deed", &Deed{},
		orm.WithIndex("owner", idxOwner, false),
	)
	return migration.NewModelBucket("deed", b)
}

func idxOwner(obj orm.Object) ([]byte, error) {
	if obj == nil {
		return nil, errors.Wrap(errors.ErrHuman, "cannot take index of nil")
	}
	d, ok := obj.Value().(*Deed)
	if !ok {
		return nil, errors.Wrap(errors.ErrHuman, "can only take index of Deed")
	}
	return d.Owner, nil
}
