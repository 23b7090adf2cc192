// Package config loads Canton provider credentials.
//
// A provider bundles the OAuth token endpoint with the settings of the two
// APIs a participant exposes: the ledger JSON API and the validator API.
// Providers are read, in order of precedence, from the CANTON_PROVIDERS
// environment variable (a JSON array), from a YAML or JSON config file with
// a top-level "providers" key, or from the legacy single-provider variables
// AUTH_URL, LEDGER_API_URL, CLIENT_ID and friends.
package config
