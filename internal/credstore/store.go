// Package credstore persists the session snapshot across process restarts.
//
// It is a dumb key/value store scoped to four keys. No validation happens
// here; the session controller decides whether a loaded snapshot is usable.
package credstore

import (
	"context"
)

// Persisted keys. The names match what earlier clients wrote so existing
// credentials remain readable.
const (
	KeyToken       = "agriConnectToken"
	KeyPrincipal   = "agriConnectUser"
	KeyRole        = "agriConnectUserType"
	KeyPrincipalID = "agriConnectUserId"
)

// Keys lists every key owned by the store, in write order.
var Keys = []string{KeyToken, KeyPrincipal, KeyRole, KeyPrincipalID}

// Snapshot is the persisted {token, principal, role} triple plus the
// denormalized principal id. An empty field means the key is absent.
type Snapshot struct {
	Token       string
	Principal   string
	Role        string
	PrincipalID string
}

// IsZero reports whether no key is present at all.
func (s Snapshot) IsZero() bool {
	return s == Snapshot{}
}

// Complete reports whether token, principal and role are all present.
func (s Snapshot) Complete() bool {
	return s.Token != "" && s.Principal != "" && s.Role != ""
}

func (s Snapshot) toMap() map[string]string {
	return map[string]string{
		KeyToken:       s.Token,
		KeyPrincipal:   s.Principal,
		KeyRole:        s.Role,
		KeyPrincipalID: s.PrincipalID,
	}
}

func snapshotFromMap(m map[string]string) Snapshot {
	return Snapshot{
		Token:       m[KeyToken],
		Principal:   m[KeyPrincipal],
		Role:        m[KeyRole],
		PrincipalID: m[KeyPrincipalID],
	}
}

// Store defines the interface for credential persistence.
//
// A store that was never written, or was cleared, loads as an empty
// Snapshot with a nil error. Concurrent writers across processes are not
// coordinated.
type Store interface {
	// Save writes all four keys.
	Save(ctx context.Context, snap Snapshot) error

	// Load returns whatever keys are present.
	Load(ctx context.Context) (Snapshot, error)

	// Clear removes all four keys. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
