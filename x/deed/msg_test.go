package deed_test

import (
	"testing"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/weavetest"

	"github.com/iov-one/tokenmarket/x/deed"
)

func TestIssueDeedMsgValidate(t *testing.T) {
	cases := map[string]struct {
		mutator func(msg *deed.IssueDeedMsg)
		wantErr *errors.Error
	}{
		"happy path": {},
		"missing metadata": {
			mutator: func(msg *deed.IssueDeedMsg) {
				msg.Metadata = nil
			},
			wantErr: errors.ErrMetadata,
		},
		"missing collection": {
			mutator: func(msg *deed.IssueDeedMsg) {
				msg.Collection = nil
			},
			wantErr: errors.ErrEmpty,
		},
		"missing token id": {
			mutator: func(msg *deed.IssueDeedMsg) {
				msg.TokenId = nil
			},
			wantErr: errors.ErrEmpty,
		},
		"missing owner": {
			mutator: func(msg *deed.IssueDeedMsg) {
				msg.Owner = nil
			},
			wantErr: errors.ErrEmpty,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			msg := &deed.IssueDeedMsg{
				Metadata:   &weave.Metadata{Schema: 1},
				Collection: []byte("gallery"),
				TokenId:    []byte("1"),
				Owner:      weavetest.NewCondition().Address(),
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

func TestTransferDeedMsgValidate(t *testing.T) {
	cases := map[string]struct {
		mutator func(msg *deed.TransferDeedMsg)
		wantErr *errors.Error
	}{
		"happy path": {},
		"aux data at the limit": {
			mutator: func(msg *deed.TransferDeedMsg) {
				msg.AuxData = make([]byte, 128)
			},
		},
		"missing metadata": {
			mutator: func(msg *deed.TransferDeedMsg) {
				msg.Metadata = nil
			},
			wantErr: errors.ErrMetadata,
		},
		"missing destination": {
			mutator: func(msg *deed.TransferDeedMsg) {
				msg.To = nil
			},
			wantErr: errors.ErrEmpty,
		},
		"aux data too long": {
			mutator: func(msg *deed.TransferDeedMsg) {
				msg.AuxData = make([]byte, 129)
			},
			wantErr: errors.ErrInput,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			msg := &deed.TransferDeedMsg{
				Metadata:   &weave.Metadata{Schema: 1},
				Collection: []byte("gallery"),
				TokenId:    []byte("1"),
				To:         weavetest.NewCondition().Address(),
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
