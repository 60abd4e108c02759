// Package auth implements the authentication and session lifecycle of the
// greenbites backend: dual access/refresh JWT issuance, token revocation,
// single-use activation and verification tokens, and the request gate that
// admits authenticated requests.
//
// Tokens:
//   - TokenCodec signs access and refresh tokens with independent secrets.
//     A refresh token never validates against the access secret and the
//     other way around.
//   - Revoked tokens are stored by jti until their natural expiry. The
//     Sweeper removes entries once they can no longer be used.
//
// Stores:
//   - RepositoryManager aggregates the Bun backed stores (users, short lived
//     tokens, revocations, passkey challenges and credentials) and runs
//     transactions. Single-use semantics rely on row level atomicity only.
//
// Flows:
//   - Auther composes the stores into login, refresh and logout. Command
//     handlers (RegisterUserHandler, ActivateAccountHandler,
//     RecreateTokenHandler, ConfirmVerificationHandler,
//     ChangePasswordHandler) implement the remaining state transitions.
//
// Gate:
//   - Auther.Authenticate runs the ordered request checks (bearer, signature,
//     revocation, expiry, freshness, user, admin). Auther.Gate adapts it to
//     the jwtware go-router middleware, and FromContext reads the resolved
//     user.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter. Sinks run best-effort
//     (errors are logged) so a failing sink never blocks authentication.
package auth
