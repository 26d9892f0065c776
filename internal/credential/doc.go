// Package credential stores and refreshes the cloud credential.
//
// Two modes are supported. In static mode the user supplies the private
// key directly and no refresh ever happens. In OAuth mode the store holds
// a token pair, derives the private key from the access token, and
// refreshes the pair when it expires.
//
// # Refresh Discipline
//
// For a given expiry the refresh runs exactly once. The store's RWMutex
// enforces the contract:
//
//   - API requests acquire the key under a read lock held for the
//     duration of the request.
//   - A refresh takes the write lock, so it waits for in-flight requests
//     to drain and blocks new ones until the fresh token is in place.
//   - Callers that raced to trigger the refresh re-check expiry under the
//     write lock, so only the first actually hits the token endpoint.
//
// When the cloud rejects the refresh grant the store marks itself as
// needing re-authentication and fails fast until a new token pair or
// static key is supplied.
//
// Credentials persist in SQLite so the bridge resumes without user
// interaction after a restart.
package credential
