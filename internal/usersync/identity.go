package usersync

// Identity is a normalized external identity as reported by the authority.
// The UID is authority-assigned and immutable; Username is the login name,
// compared case-insensitively but stored case-preserving.
type Identity struct {
	UID        string
	Username   string
	Attributes map[string]string
}

// SyncError signals an internal inconsistency during profile
// synchronization, such as a profile still reported new after a successful
// creation. It is distinct from an ordinary authentication denial.
type SyncError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}

	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *SyncError) Unwrap() error {
	return e.Cause
}
