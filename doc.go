// Package auth implements the authentication slice of a storefront web
// application: password login with remember-me aware JWT sessions,
// email-code registration, direct registration, and cookie based session
// delivery over HTTP.
//
// The package is organized around a small set of collaborators:
//
//   - RepositoryManager: bun backed storage for users and verification codes
//   - TokenService: JWT mint and validation
//   - UserProvider: credential verification against stored digests
//   - Auther / RouteAuthenticator: programmatic and HTTP entry points
//   - Mailer: outbound verification code delivery
//
// The client side counterpart (session persistence tiers, the
// authentication state machine, and the route access guard) lives in the
// client subpackage.
package auth
