// Package cloud implements the BeHome (Bemfa) cloud API client.
//
// The cloud exposes two HTTP operations: a device listing endpoint that
// returns every device registered to the account, and a command endpoint
// that publishes a JSON message to a device topic. Both operations
// authenticate with an "openID" parameter, the base64-encoded private key.
//
// # Error Classification
//
// Every error returned by the client wraps one of three sentinels so that
// callers can choose a recovery strategy without parsing messages:
//
//   - ErrAuth: the credential was rejected. The caller should refresh the
//     token (or surface a re-authentication requirement) before retrying.
//   - ErrTransient: a network fault, timeout, or server-side failure.
//     Retrying later with the same credential is reasonable.
//   - ErrPermanent: the request itself is invalid and will not succeed
//     on retry (malformed topic, unsupported command, API contract error).
//
// # Credential Coordination
//
// The client never holds credentials itself. Each request acquires the
// private key through a Credentials provider, which also serialises API
// calls against token refreshes: a refresh in progress blocks acquisition,
// and in-flight requests block a refresh from starting.
package cloud
