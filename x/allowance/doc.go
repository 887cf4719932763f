/*

Package allowance implements standing authorizations on fungible tokens. A
holder grants a spender the right to pull up to a fixed amount of one token
out of the holder's wallet. The funds themselves stay in the x/cash wallet
until a pull consumes the allowance and moves them in one step.

*/
package allowance
