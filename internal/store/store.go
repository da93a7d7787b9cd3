package store

import (
	"context"
	"errors"

	"github.com/nhle/carpool-client/internal/model"
)

// ErrNoProfile is returned by GetProfile when nobody is logged in.
var ErrNoProfile = errors.New("no stored profile")

// Store defines the local persistence used between runs. Only the profile
// of the logged-in user is kept; notifications always come from the server.
type Store interface {
	// SaveProfile replaces the stored profile with u.
	SaveProfile(ctx context.Context, u model.User) error

	// GetProfile returns the stored profile, or ErrNoProfile.
	GetProfile(ctx context.Context) (*model.User, error)

	// DeleteProfile removes the stored profile. Deleting when nothing is
	// stored is not an error.
	DeleteProfile(ctx context.Context) error

	Close() error
}
