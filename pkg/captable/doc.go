// Package captable drives the OpenCapTable Daml workflow on a Canton
// ledger: issuer authorization, stock classes, issuance proposals and
// transfers between holders.
//
// Each operation exercises one choice and locates the contracts it produced
// by scanning the resulting transaction tree for the expected template, so
// results do not depend on the order in which the ledger numbers events.
package captable
