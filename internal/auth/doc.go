// Package auth implements the authentication-synchronization engine that
// bridges an external trusted authority and the wiki's local profile store.
//
// # Coordinator
//
// The Coordinator is the single entry point for both authentication paths:
//
//   - CheckAuthSSO handles trusted single sign-on: a remote user asserted
//     by an upstream system (web server, SSO proxy) is accepted without a
//     credential check, its identity looked up at the authority and its
//     local profile reconciled.
//   - Authenticate handles explicit username/password logins, including
//     the superadministrator short-circuit, a retry against the main wiki
//     when the caller's wiki rejects the login, and an optional legacy
//     local-credential fallback gated by the pam_trylocal preference.
//
// Every attempt builds a fresh preference snapshot (see the prefs package)
// so that values derived from the raw identity token override wiki-scoped
// settings, which override the configuration file.
//
// # Single flight
//
// Concurrent authentication requests for the same raw identity token are
// serialized through a reference-counted lock registry: at most one
// authority call and one profile write sequence is in flight per token,
// while distinct tokens proceed fully in parallel. A token's lock entry is
// reclaimed when its last holder releases it. Inside the lock the session
// cache is checked again, so requests that waited behind a completed
// authentication reuse its principal instead of repeating the authority
// call.
//
// # Results
//
// Attempts produce a Result with one of three outcomes: Authenticated with
// the established principal, Denied with a reason for ordinary failures
// (wrong password, missing username, PAM disabled), or Error for unexpected
// internal failures. Ordinary denials never surface as errors and are
// logged at debug level only.
//
// # Verifier
//
// The external authority is abstracted behind the Verifier interface with
// Verify (credential check) and Lookup (trusted attribute fetch). The
// provided LDAPVerifier implements it against an LDAP/Active Directory
// server; the configured pam_timeout becomes the context deadline of the
// authority call and honoring it is the verifier's responsibility.
package auth
