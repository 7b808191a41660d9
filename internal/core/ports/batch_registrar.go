package ports

import (
	"context"
	"errors"

	"github.com/99minutos/user-registry/internal/core/domain"
)

// ErrBatchStopped is returned by a BatchRegistrar whose workers are no
// longer running, typically during shutdown.
var ErrBatchStopped = errors.New("batch registrar stopped")

// RegistrationResult is the outcome of one batch item. Exactly one of User
// and Err is set.
type RegistrationResult struct {
	Index int
	User  *domain.User
	Err   error
}

// BatchRegistrar registers many requests at once, returning one result per
// request in input order.
type BatchRegistrar interface {
	Submit(ctx context.Context, requests []domain.CreateUserRequest) ([]RegistrationResult, error)
}
