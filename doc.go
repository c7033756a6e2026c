// Package auth provides the session lifecycle core of the delivery ordering
// client: a typed session cache, the routing state evaluator, the AuthService
// that reconciles the cache with a phone identity provider and a document
// store, and an ActivityMonitor enforcing the inactivity timeout.
//
// Session cache:
//   - SessionStore owns the cache schema on top of a KeyValueStore. The token
//     is the only authoritative signal of a session; role, community and
//     auth state are denormalized copies kept in sync by Patch.
//   - A cache that cannot be decoded is cleared and read as no session.
//
// Routing:
//   - Evaluate maps a cached record, role and community onto one of five
//     AuthStates and a redirect. It is pure and total. DefaultStateRules can
//     be extended and run through EvaluateWith.
//
// Lifecycle:
//   - AuthService applies the absolute session TTL (24h by default) before
//     every evaluation and serializes cache access. Query operations never
//     return errors; they fail closed into an unauthenticated result.
//   - ActivityMonitor polls the auth state, signs out after the inactivity
//     window, suspends its timers in the background and re-validates the
//     session on resume.
//
// Activity sinks:
//   - ActivitySink receives audit events for session establishment, updates,
//     expiry, desync and sign-out. Sinks run best-effort (errors are logged).
package auth
