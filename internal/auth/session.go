package auth

// Record is a cached authentication bound to one caller session: the
// established principal together with the raw identity token it was derived
// from. The record is reused only while the token presented on a new
// request equals the stored one; a mismatch forces re-authentication.
type Record struct {
	Principal  Principal `json:"principal"`
	RemoteUser string    `json:"remoteUser"`
}

// SessionCache is the caller-session scoped cache collaborator. It is owned
// exclusively by one session and needs no cross-session synchronization;
// the web layer backs it with the session store.
type SessionCache interface {
	// Record returns the cached authentication or nil.
	Record() *Record

	// SetRecord caches an authentication for the session.
	SetRecord(record *Record)
}
