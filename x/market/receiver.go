package market

import (
	"github.com/iov-one/weave"

	"github.com/iov-one/tokenmarket/x/deed"
)

var _ deed.TokenReceiver = (*Receiver)(nil)

// Receiver accepts every deed pushed into the market custody account. It is
// a pass-through acknowledgment and keeps no state: pairing happens later,
// through an explicit CreatePairMsg from the depositor.
type Receiver struct{}

// NewReceiver returns the receipt hook to register with the deed routes for
// the market custody address.
func NewReceiver() *Receiver {
	return &Receiver{}
}

// OnTokenReceived acknowledges the deposit. Returning anything but the
// canonical acknowledgement would make the deed module abort the transfer.
func (*Receiver) OnTokenReceived(db weave.KVStore, operator, from weave.Address, collection, tokenID, auxData []byte) ([]byte, error) {
	return deed.ReceiptAck, nil
}
