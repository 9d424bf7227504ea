// Package auth provides JWT access-token generation and validation
// for the gateway API.
//
// Tokens are HS256-signed with the shared secret from config and
// validated by signature only. An empty secret puts the gateway in
// permissive development mode; the API middleware then skips token
// checks entirely.
package auth
