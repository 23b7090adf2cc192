// Package jsonapi is a client for the Canton ledger JSON API (v2).
//
// It submits create and exercise commands, manages parties and user
// rights, uploads DAR packages and reads events, updates and transaction
// trees. Responses that carry a transaction tree expose its events in node
// order so callers can locate the contracts a command produced by kind,
// template or choice rather than by position.
package jsonapi
