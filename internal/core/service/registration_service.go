package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-registry/internal/core/domain"
	"github.com/99minutos/user-registry/internal/core/ports"
	"github.com/99minutos/user-registry/internal/core/validation"
)

// RegistrationService validates registration requests and delegates
// persistence to a UserRepository.
type RegistrationService struct {
	repo  ports.UserRepository
	rules *validation.Engine[domain.CreateUserRequest]
	cache ports.UserCache
	log   zerolog.Logger
}

// Option customises a RegistrationService.
type Option func(*RegistrationService)

// WithCache serves username lookups through cache.
func WithCache(cache ports.UserCache) Option {
	return func(s *RegistrationService) {
		if cache != nil {
			s.cache = cache
		}
	}
}

func NewRegistrationService(
	repo ports.UserRepository,
	rules *validation.Engine[domain.CreateUserRequest],
	log zerolog.Logger,
	opts ...Option,
) *RegistrationService {
	s := &RegistrationService{
		repo:  repo,
		rules: rules,
		cache: noopCache{},
		log:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates req and creates the user. Validation failures never
// reach the repository.
func (s *RegistrationService) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	if violations := s.rules.Validate(req); len(violations) > 0 {
		return nil, &domain.ValidationError{Violations: violations}
	}

	created, err := s.repo.Create(ctx, domain.NewUser(req))
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			s.log.Info().Str("username", req.Username).Str("field", conflict.Field).Msg("registration conflict")
			return nil, err
		}
		s.log.Error().Err(err).Str("username", req.Username).Msg("failed to create user")
		return nil, err
	}

	s.log.Info().Int64("id", *created.ID).Str("username", created.Username).Msg("user registered")
	return &created, nil
}

func (s *RegistrationService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// FindByUsername turns an absent user into domain.ErrUserNotFound.
func (s *RegistrationService) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if cached, found, err := s.cache.Get(ctx, username); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("user cache read failed")
	} else if found {
		return cached, nil
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("username %q: %w", username, domain.ErrUserNotFound)
	}

	if err := s.cache.Set(ctx, *user); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("user cache write failed")
	}
	return user, nil
}

func (s *RegistrationService) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.repo.Get(ctx, id)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*domain.User, bool, error) { return nil, false, nil }
func (noopCache) Set(context.Context, domain.User) error                  { return nil }
