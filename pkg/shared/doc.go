// Package shared provides common utilities used across the Canton ledger
// client packages. It includes .env discovery, environment variable helpers
// and construction of the zap loggers handed to every client.
//
// # Environment Variables
//
// LoadDotEnv walks from the working directory towards the filesystem root
// and loads the first .env file it finds. Variables that are already set in
// the process environment are never overridden, so explicit exports always
// win over the file.
package shared
