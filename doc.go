// Package localuser provides a pluggable local-account authentication
// subsystem for API servers: account and group records, credential
// verification, bearer/service/JWT session tokens, and group-based
// authorization checks.
//
// Credential resolution:
//   - SessionAuthenticator resolves an inbound credential carrier (bearer
//     header, access_token parameter, or signed-token cookie) to an Account.
//     Credentials are classified once into a tagged variant (service secret,
//     remember-me, bearer, signed token) and dispatched to exactly one
//     strategy. Requests with no credential fall back to the designated
//     anonymous account when one is provisioned.
//
// Session lifecycle:
//   - Lifecycle transitions (signup, verify, login, forgot, reset, logout,
//     force-logout) are implemented as command handlers. Transitions that
//     touch both account and session state run inside a single transaction.
//   - Bearer sessions are persisted per account, pruned of idle entries and
//     capped at ten live sessions, oldest evicted first. Signed stateless
//     tokens carry a required claim set and are proactively reissued through
//     a response header once they age past the refresh threshold.
//
// Authorization:
//   - RequireGroups builds middleware that admits an account when its group
//     set intersects the required set (any-of semantics).
package localuser
