// Package session stores the per-session authentication record and adapts
// it to the coordinator's session cache contract.
package session

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage"
	"github.com/rs/zerolog/log"

	"github.com/plandes/pamauth/internal/auth"
	"github.com/plandes/pamauth/internal/uniuri"
)

// Store is the global session store instance.
var Store *session.Store

// Data represents the session data structure.
type Data struct {
	Auth *auth.Record `json:"auth,omitempty"`
}

// Write writes the session data for the given session ID with an expiration duration.
func (s *Data) Write(sessionID string, exp time.Duration) error {
	out, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return Store.Storage.Set(sessionID, out, exp)
}

// Read reads the session data for the given session ID.
func (s *Data) Read(sessionID string) error {
	byteData, err := Store.Storage.Get(sessionID)
	if err != nil {
		return err
	}

	if len(byteData) == 0 {
		return nil
	}

	return json.Unmarshal(byteData, s)
}

// Delete removes the session data for the given session ID.
func Delete(sessionID string) error {
	return Store.Storage.Delete(sessionID)
}

// Init initializes the session store with the provided storage backend.
func Init(storage storage.Storage) {
	if storage == nil {
		panic("storage is nil")
	}

	Store = session.New(session.Config{
		Storage: storage,
	})
}

// sessionIDLen is twice the UUID-equivalent length, ~238 bits of entropy.
const sessionIDLen = 2 * uniuri.UUIDLen

// GenerateSessionID generates a new secure random session ID.
func GenerateSessionID() (string, error) {
	return uniuri.NewLen(sessionIDLen), nil
}

// Cache adapts one caller's session to auth.SessionCache. Failed reads are
// treated as an absent record; failed writes are logged and dropped so an
// unwritable session store can never block a login.
type Cache struct {
	sessionID string
	expiry    time.Duration
}

// NewCache creates a session cache bound to a session ID.
func NewCache(sessionID string, expiry time.Duration) *Cache {
	return &Cache{sessionID: sessionID, expiry: expiry}
}

var _ auth.SessionCache = (*Cache)(nil)

// Record implements auth.SessionCache.
func (c *Cache) Record() *auth.Record {
	data := new(Data)
	if err := data.Read(c.sessionID); err != nil {
		return nil
	}

	return data.Auth
}

// SetRecord implements auth.SessionCache.
func (c *Cache) SetRecord(record *auth.Record) {
	data := Data{Auth: record}

	if err := data.Write(c.sessionID, c.expiry); err != nil {
		log.Warn().Err(err).Msg("failed to write session authentication record")
	}
}
