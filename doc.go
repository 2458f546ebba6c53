// Package identity provides the role-aware identity layer for a recruiting
// platform: account and profile repositories, session credential pairs,
// purpose-bound signed tokens, and the access policy evaluated by the HTTP
// middleware.
//
// Account lifecycle:
//   - Applicants self-register and receive an email verification token.
//     Verification is advisory, new accounts can log in immediately.
//   - HR accounts are provisioned by admins with an unusable credential and
//     activate it through a purpose-bound onboarding token. Password resets
//     and onboarding links die as soon as the account's security stamp
//     changes.
//
// Sessions:
//   - SessionIssuer mints HS256 access/refresh pairs. Refresh credentials
//     rotate on use and land on the revocation cache, access credentials
//     expire on their own. ClaimsDecorator hooks may enrich extension
//     claims before signing while protected claims (sub, iss, aud, exp,
//     role, token_use) remain immutable.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the session
//     issuer, the federation adapter, and the registration handler to
//     describe login, session, and lifecycle events. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue without
//     blocking authentication.
package identity
