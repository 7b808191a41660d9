package ports

import (
	"context"

	"github.com/99minutos/user-registry/internal/core/domain"
)

// UserCache is a read-through cache for username lookups.
type UserCache interface {
	// Get reports found=false on a miss.
	Get(ctx context.Context, username string) (user *domain.User, found bool, err error)
	Set(ctx context.Context, user domain.User) error
}
