package market

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
)

func init() {
	migration.MustRegister(1, &Pair{}, migration.NoModification)
}

var _ orm.CloneableData = (*Pair)(nil)

// Validate ensures the pair is valid.
func (p *Pair) Validate() error {
	if err := p.Metadata.Validate(); err != nil {
		return errors.Wrap(err, "metadata")
	}
	if len(p.Collection) == 0 {
		return errors.Wrap(errors.ErrEmpty, "collection")
	}
	if len(p.TokenId) == 0 {
		return errors.Wrap(errors.ErrEmpty, "token id")
	}
	if err := p.Owner.Validate(); err != nil {
		return errors.Wrap(err, "owner")
	}
	return validatePrice(p.Price)
}

// Copy makes a new pair with the same values.
func (p *Pair) Copy() orm.CloneableData {
	return &Pair{
		Metadata:   p.Metadata.Copy(),
		Collection: append([]byte(nil), p.Collection...),
		TokenId:    append([]byte(nil), p.TokenId...),
		Owner:      p.Owner,
		Price:      p.Price.Clone(),
	}
}

// PairKey derives the ledger key of a pair from its defining fields. The
// derivation is deterministic and every field is length prefixed, so two
// different triples can never produce the same key. The key does not reveal
// the inputs; the pair record itself stores them in plain form.
func PairKey(collection, tokenID []byte, ticker string) []byte {
	h := sha256.New()
	for _, part := range [][]byte{collection, tokenID, []byte(ticker)} {
		var ln [4]byte
		binary.BigEndian.PutUint32(ln[:], uint32(len(part)))
		h.Write(ln[:])
		h.Write(part)
	}
	return h.Sum(nil)
}

// TokenKey is the secondary index key of a pair. It identifies the token
// alone, without the pricing ticker, so that callers can find a listing
// knowing only the deed.
func TokenKey(collection, tokenID []byte) []byte {
	var ln [4]byte
	binary.BigEndian.PutUint32(ln[:], uint32(len(collection)))
	key := make([]byte, 0, len(ln)+len(collection)+len(tokenID))
	key = append(key, ln[:]...)
	key = append(key, collection...)
	return append(key, tokenID...)
}

// CustodyAddress is the account that holds every deed while it is listed on
// the market. The address is derived from a fixed condition, no key pair can
// sign for it.
func CustodyAddress() weave.Address {
	return weave.NewCondition("market", "custody", []byte("deeds")).Address()
}

// NewBucket returns a bucket for storing pairs, indexed by the token they
// list. The index is unique: a token can be listed at most once, and index
// and primary record are only ever written together.
func NewBucket() orm.ModelBucket {
	b := orm.NewModelBucket("pair", &Pair{},
		orm.WithIndex("token", idxToken, true),
	)
	return migration.NewModelBucket("market", b)
}

func idxToken(obj orm.Object) ([]byte, error) {
	if obj == nil {
		return nil, errors.Wrap(errors.ErrHuman, "cannot take index of nil")
	}
	p, ok := obj.Value().(*Pair)
	if !ok {
		return nil, errors.Wrap(errors.ErrHuman, "can only take index of Pair")
	}
	return TokenKey(p.Collection, p.TokenId), nil
}
