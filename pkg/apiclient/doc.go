// Package apiclient is the authenticated HTTP executor shared by the ledger
// JSON API and validator API clients.
//
// A Client obtains an OAuth2 access token from the provider's token endpoint
// the first time an authenticated request is made, attaches it as a bearer
// token and keeps it until the ledger reports a security-sensitive error.
// That error signature triggers exactly one re-authentication and retry;
// any other failure is returned to the caller unchanged.
//
// Every request attempt is recorded through an optional auditlog.Writer and,
// when a Metrics value is configured, counted in Prometheus collectors.
package apiclient
