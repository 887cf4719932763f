/*

Package market implements an escrow market for non-fungible deeds priced in
fungible tokens.

A depositor first moves a deed into the market custody account (the market
acknowledges every inbound deed, see Receiver) and then lists it by creating a
pair: the deed bound to a price in a single fungible token. While listed, the
deed can only leave custody through one of two doors. The depositor may
retrieve it at any time, or any buyer may swap for it by granting the market
custody account a standing allowance that matches the listed price exactly.
A swap removes the listing, pulls the payment from the buyer to the
depositor and hands the deed over to the buyer within a single delivery, so
either all three happen or none of them does.

Every pair is stored under a key derived from (collection, token id, pricing
ticker). A secondary unique index on (collection, token id) lets callers find
the listing without knowing the pricing ticker and guarantees a token is
listed at most once.

*/
package market
