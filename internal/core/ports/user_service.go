package ports

import (
	"context"

	"github.com/99minutos/user-registry/internal/core/domain"
)

// UserService defines the registration use cases exposed to transports.
type UserService interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Get(ctx context.Context, id int64) (*domain.User, error)
}
