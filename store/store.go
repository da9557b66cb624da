package store

import (
	"context"
	"errors"

	"github.com/bai-labs/figmaproxy/models"
)

// IdentityStore persists users keyed by their Figma account id.
// UpsertUser creates the user on first login; on repeat logins only the
// access/refresh tokens are overwritten, everything else is preserved.
type IdentityStore interface {
	UpsertUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, figmaId string) (models.User, error)
}

var ErrItemNotFound = errors.New("item does not exist")
