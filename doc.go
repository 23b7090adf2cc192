// Package canton is a Go client for Canton participants and the
// OpenCapTable Daml workflow that runs on them.
//
// # Packages
//
//   - pkg/config: named provider credentials from CANTON_PROVIDERS, a config
//     file, or the single-provider environment variables
//   - pkg/apiclient: authenticated request executor with token refresh on
//     security-sensitive errors, audit logging and metrics
//   - pkg/auditlog: one JSON file per ledger request
//   - pkg/jsonapi: ledger JSON API v2 (commands, parties, events, updates,
//     packages) and transaction tree helpers
//   - pkg/validator: validator API wallet balance
//   - pkg/captable: OpenCapTable issuance and transfer workflow
//   - pkg/darpkg: `daml build` and DAR discovery
//   - pkg/display: identifier truncation, number formatting, tree rendering
//   - pkg/explorer: read-only HTTP explorer API
//
// The cantonctl command under cmd/cantonctl wires these together, and
// examples/ holds small runnable programs.
//
// # Installation
//
//	go get github.com/Fairmint/canton@latest
package canton
