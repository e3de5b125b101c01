// Package x402 implements a payment-gated resource access protocol over
// native-currency transfers on a single EVM chain. A server rejects unpaid
// requests with an HTTP 402 challenge describing the required payment, the
// client settles the payment on chain, and the server verifies the
// transaction before releasing the resource.
//
// The root package holds the protocol types, the error taxonomy, and shared
// configuration. The ledger, signer, challenge, verify, and gatehttp
// subpackages implement the on-chain client, transaction signing, challenge
// issuance, proof verification, and the HTTP resource gate respectively.
package x402
