package market_test

import (
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"

	"github.com/iov-one/tokenmarket/x/market"
)

func TestCreatePairMsgValidate(t *testing.T) {
	cases := map[string]struct {
		mutator func(msg *market.CreatePairMsg)
		wantErr *errors.Error
	}{
		"happy path": {},
		"zero price is a valid listing": {
			mutator: func(msg *market.CreatePairMsg) {
				zero := coin.NewCoin(0, 0, "FUN")
				msg.Price = &zero
			},
		},
		"missing metadata": {
			mutator: func(msg *market.CreatePairMsg) {
				msg.Metadata = nil
			},
			wantErr: errors.ErrMetadata,
		},
		"missing collection": {
			mutator: func(msg *market.CreatePairMsg) {
				msg.Collection = nil
			},
			wantErr: errors.ErrEmpty,
		},
		"missing token id": {
			mutator: func(msg *market.CreatePairMsg) {
				msg.TokenId = nil
			},
			wantErr: errors.ErrEmpty,
		},
		"missing price": {
			mutator: func(msg *market.CreatePairMsg) {
				msg.Price = nil
			},
			wantErr: errors.ErrEmpty,
		},
		"negative price": {
			mutator: func(msg *market.CreatePairMsg) {
				negative := coin.NewCoin(-1, 0, "FUN")
				msg.Price = &negative
			},
			wantErr: errors.ErrAmount,
		},
		"malformed ticker": {
			mutator: func(msg *market.CreatePairMsg) {
				bad := coin.NewCoin(1, 0, "this-is-not-a-ticker")
				msg.Price = &bad
			},
			wantErr: errors.ErrCurrency,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			price := coin.NewCoin(7, 0, "FUN")
			msg := &market.CreatePairMsg{
				Metadata:   &weave.Metadata{Schema: 1},
				Collection: []byte("gallery"),
				TokenId:    []byte("1"),
				Price:      &price,
			}
			if tc.mutator != nil {
				tc.mutator(msg)
			}
			if err := msg.Validate(); !tc.wantErr.Is(err) {
				t.Fatalf("expected %+v but got %+v", tc.wantErr, err)
			}
		})
	}
}

func TestUpdatePairPriceMsgValidate(t *testing.T) {
	cases := map[string]struct {
		mutator func(msg *market.UpdatePairPriceMsg)
		wantErr *errors.Error
	}{
		"happy path": {},
		"missing metadata": {
			mutator: func(msg *market.UpdatePairPriceMsg) {
				msg.Metadata = nil
			},
			wantErr: errors.ErrMetadata,
		},
		"missing new price": {
			mutator: func(msg *market.UpdatePairPriceMsg) {
				msg.NewPrice = nil
			},
			wantErr: errors.ErrEmpty,
		},
		"negative new price": {
			mutator: func(msg *market.UpdatePairPriceMsg) {
				negative := coin.NewCoin(-1, 0, "FUN")
				msg.NewPrice = &negative
			},
			wantErr: errors.ErrAmount,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			price := coin.NewCoin(9, 0, "FUN")
			msg := &market.UpdatePairPriceMsg{
				Metadata:   &weave.Metadata{Schema: 1},
				Collection: []byte("gallery"),
				TokenId:    []byte("1"),
				NewPrice:   &price,
			}
			if tc.mutator != nil {
				tc.mutator(msg)
			}
			if err := msg.Validate(); !tc.wantErr.Is(err) {
				t.Fatalf("expected %+v but got %+v", tc.wantErr, err)
			}
		})
	}
}
