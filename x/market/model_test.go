package market_test

import (
	"bytes"
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/weavetest/assert"

	"github.com/iov-one/tokenmarket/x/market"
)

func TestPairKeyDeterministic(t *testing.T) {
	a := market.PairKey([]byte("gallery"), []byte("1"), "FUN")
	b := market.PairKey([]byte("gallery"), []byte("1"), "FUN")
	if !bytes.Equal(a, b) {
		t.Fatalf("same inputs produced different keys: %X != %X", a, b)
	}
}

func TestPairKeyDistinct(t *testing.T) {
	base := market.PairKey([]byte("gallery"), []byte("1"), "FUN")

	cases := map[string][]byte{
		"different collection": market.PairKey([]byte("museum"), []byte("1"), "FUN"),
		"different token":      market.PairKey([]byte("gallery"), []byte("2"), "FUN"),
		"different ticker":     market.PairKey([]byte("gallery"), []byte("1"), "OTH"),
		// length prefixing must keep shifted boundaries apart
		"shifted boundary": market.PairKey([]byte("gallery1"), []byte(""), "FUN"),
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			if bytes.Equal(base, key) {
				t.Fatalf("key collision: %X", key)
			}
		})
	}
}

func TestTokenKeyBoundary(t *testing.T) {
	// without the length prefix these two would be identical
	a := market.TokenKey([]byte("ab"), []byte("c"))
	b := market.TokenKey([]byte("a"), []byte("bc"))
	if bytes.Equal(a, b) {
		t.Fatalf("token key collision: %X", a)
	}
}

func TestPairValidate(t *testing.T) {
	owner := weavetest.NewCondition().Address()
	price := coin.NewCoin(7, 0, "FUN")

	cases := map[string]struct {
		mutator func(p *market.Pair)
		wantErr *errors.Error
	}{
		"valid": {},
		"missing metadata": {
			mutator: func(p *market.Pair) { p.Metadata = nil },
			wantErr: errors.ErrMetadata,
		},
		"missing collection": {
			mutator: func(p *market.Pair) { p.Collection = nil },
			wantErr: errors.ErrEmpty,
		},
		"missing token id": {
			mutator: func(p *market.Pair) { p.TokenId = nil },
			wantErr: errors.ErrEmpty,
		},
		"missing owner": {
			mutator: func(p *market.Pair) { p.Owner = nil },
			wantErr: errors.ErrEmpty,
		},
		"missing price": {
			mutator: func(p *market.Pair) { p.Price = nil },
			wantErr: errors.ErrEmpty,
		},
		"negative price": {
			mutator: func(p *market.Pair) {
				negative := coin.NewCoin(-1, 0, "FUN")
				p.Price = &negative
			},
			wantErr: errors.ErrAmount,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			pair := &market.Pair{
				Metadata:   &weave.Metadata{Schema: 1},
				Collection: []byte("gallery"),
				TokenId:    []byte("1"),
				Owner:      owner,
				Price:      &price,
			}
			if tc.mutator != nil {
				tc.mutator(pair)
			}
			if err := pair.Validate(); !tc.wantErr.Is(err) {
				t.Fatalf("expected %+v but got %+v", tc.wantErr, err)
			}
		})
	}
}

func TestPairCopy(t *testing.T) {
	price := coin.NewCoin(7, 0, "FUN")
	pair := &market.Pair{
		Metadata:   &weave.Metadata{Schema: 1},
		Collection: []byte("gallery"),
		TokenId:    []byte("1"),
		Owner:      weavetest.NewCondition().Address(),
		Price:      &price,
	}
	cpy := pair.Copy().(*market.Pair)

	assert.Equal(t, pair.Owner, cpy.Owner)
	assert.Equal(t, pair.Price.Equals(*cpy.Price), true)

	// mutating the copy must not touch the original
	cpy.Collection[0] = 'x'
	assert.Equal(t, pair.Collection[0], byte('g'))
}
