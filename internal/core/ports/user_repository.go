package ports

import (
	"context"

	"github.com/99minutos/user-registry/internal/core/domain"
)

// UserRepository owns the durable user collection.
type UserRepository interface {
	// List returns every stored user ordered by id. An empty store yields an
	// empty slice.
	List(ctx context.Context) ([]domain.User, error)
	// Create persists user and returns a detached copy carrying the generated
	// id. user.ID must be nil. Unique username/email violations are reported
	// as *domain.ConflictError.
	Create(ctx context.Context, user domain.User) (domain.User, error)
	// FindByUsername returns (nil, nil) when no user has that exact username.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// Get returns domain.ErrUserNotFound when id is unknown.
	Get(ctx context.Context, id int64) (*domain.User, error)
}
