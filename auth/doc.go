// Package auth implements account registration, password login, session
// token issuance and the email verification flow.
//
// The main pieces are:
//
//   - PasswordHasher (argon2id) used by registration and login
//   - TokenService issuing access and refresh JWTs that carry only the user id
//   - EmailVerifier, the verification token state machine
//   - Authenticator, which ties the above to the Users repository
//   - AuthController, the fiber handlers mounted under /auth
//
// A user moves through three verification states: no pending token, a
// pending token with an expiry, and verified. Once verified a user never
// re-enters the pending state.
package auth
