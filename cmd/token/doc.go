// Command token is the operator-side provisioning token utility.
//
//	token inspect <token>                         decode claims for display
//	token inspect <token> --verify --secrets p    also check the signature
//
// The decoded claims are untrusted unless --verify reports VALID; the
// signature check is the exact one the server performs, so the two can never
// disagree. Exits 1 on decode failure or an INVALID signature.
package main
