package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Endpoint is a tenant-registered webhook destination. Rows are created and
// toggled by tenant configuration; the delivery core only reads them.
type Endpoint struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	URL          string    `json:"url"`
	SecretKeyEnc string    `json:"-"` // AES-256-GCM ciphertext, never expose
	Events       []string  `json:"events"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Subscribes reports whether the endpoint is enabled and listens for eventType.
func (e *Endpoint) Subscribes(eventType string) bool {
	return e.Enabled && slices.Contains(e.Events, eventType)
}

// OwnedBy reports whether ownerID owns the endpoint.
func (e *Endpoint) OwnedBy(ownerID uuid.UUID) bool {
	return e.OwnerID == ownerID
}
