/*

Package deed implements a registry of non-fungible deeds. Every deed is a
unique (collection, token id) entry with exactly one owner. The registry
answers who holds a deed and moves deeds between accounts, either through a
signed transfer message or through the controller for other modules.

Accounts that take custody of deeds programmatically register a TokenReceiver
hook. A transfer to such an account only goes through when the hook returns
the canonical acknowledgement, so deeds cannot be pushed into an account that
does not know how to release them again.

*/
package deed
