package tokenstore

import (
	"context"
	"time"

	"github.com/alefiaschi96/networth-gateway/internal/models"
)

// Record is the client-local tier's view of one device's credentials:
// both tokens plus the cached user profile. A record is replaced whole
// on every save, never mutated field by field.
type Record struct {
	AccessToken  string       `bson:"accessToken" json:"accessToken"`
	RefreshToken string       `bson:"refreshToken" json:"refreshToken"`
	User         *models.User `bson:"user,omitempty" json:"user,omitempty"`
	ExpiresAt    time.Time    `bson:"expiresAt" json:"expiresAt"`
	UpdatedAt    time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// Repository persists credential records keyed by device id.
type Repository interface {
	Put(ctx context.Context, deviceID string, rec *Record, ttl time.Duration) error
	// Get returns nil, nil when no record exists for the device.
	Get(ctx context.Context, deviceID string) (*Record, error)
	Delete(ctx context.Context, deviceID string) error
}
