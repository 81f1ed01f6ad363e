package auth

import "strings"

// Principal is the opaque identifier handed back to the caller after a
// successful authentication. Its name is the reconciled local profile name,
// prefixed with the wiki identifier and a colon in global scope.
type Principal struct {
	Name string
}

// Compact strips a leading wiki-scope prefix from the principal name when
// present.
func (p Principal) Compact(wiki string) Principal {
	if wiki != "" && strings.HasPrefix(p.Name, wiki+":") {
		return Principal{Name: p.Name[len(wiki)+1:]}
	}

	return p
}

// Outcome distinguishes "not authenticated" from "unexpected failure".
type Outcome int

const (
	// OutcomeDenied means the credentials were rejected or incomplete.
	// This is the ordinary failure path, logged at debug level only.
	OutcomeDenied Outcome = iota
	// OutcomeAuthenticated means a principal was established.
	OutcomeAuthenticated
	// OutcomeError means an unexpected internal failure happened before a
	// principal could be established.
	OutcomeError
)

// Result is the outcome of one authentication attempt. Exactly one of
// Principal, Reason or Err is meaningful depending on Outcome.
type Result struct {
	Outcome   Outcome
	Principal Principal
	Reason    string
	Err       error
}

// Authenticated builds a successful result.
func Authenticated(principal Principal) Result {
	return Result{Outcome: OutcomeAuthenticated, Principal: principal}
}

// Denied builds an ordinary denial result.
func Denied(reason string) Result {
	return Result{Outcome: OutcomeDenied, Reason: reason}
}

// Failed builds an internal error result.
func Failed(err error) Result {
	return Result{Outcome: OutcomeError, Err: err}
}

// OK reports whether the attempt produced a principal.
func (r Result) OK() bool {
	return r.Outcome == OutcomeAuthenticated
}
