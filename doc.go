// Package auth implements the account lifecycle and access control core of
// the FENIX.EDU platform: registration, credential login, access/refresh
// tokens, token revocation and the role gated approval workflow.
//
// User lifecycle:
//   - Users register as pending. Department heads and admins approve them,
//     admins alone reject or block. Only active accounts authenticate.
//   - UserStateMachine owns the transition graph (pending -> active|rejected,
//     active -> blocked) and writes the confirmation columns. AccountService
//     runs every transition inside a transaction that first reads the target.
//
// Access gate:
//   - Gate verifies the bearer token, consults the Denylist, loads the
//     identity and enforces status and role in that order. The first failing
//     step decides the error kind. RouteAuthenticator exposes the gate as
//     fiber middleware.
//   - Roles are ordered student < teacher < department_head < admin. Handlers
//     declare one of the tiers (TierAdmin, TierDepartmentHead, ...) instead of
//     listing roles.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the service, the
//     gate and the state machine. Sinks run best-effort (errors are logged)
//     so you can forward to metrics or a queue without blocking requests.
//
// Errors:
//   - Every failure is a *goerrors.Error tagged with an ErrorKind text code
//     and an HTTP status. KindOf and IsKind classify errors across wrapping.
package auth
