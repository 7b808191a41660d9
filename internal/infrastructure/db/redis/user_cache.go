package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/user-registry/internal/core/domain"
)

const DefaultUserTTL = 5 * time.Minute

// UserCache is a read-through cache for username lookups.
// Key format: user:username:<username>
type UserCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUserCache creates a UserCache wrapping the given Redis client. A
// non-positive ttl falls back to DefaultUserTTL.
func NewUserCache(client *redis.Client, ttl time.Duration) *UserCache {
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	return &UserCache{client: client, ttl: ttl}
}

// cachedUser mirrors domain.User but keeps the hashed password, which the
// API representation hides.
type cachedUser struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Admin          bool   `json:"admin"`
	HashedPassword string `json:"hashedPassword"`
	Enabled        bool   `json:"enabled"`
}

// Get reports (nil, false, nil) on a miss.
func (c *UserCache) Get(ctx context.Context, username string) (*domain.User, bool, error) {
	raw, err := c.client.Get(ctx, c.key(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("user cache get: %w", err)
	}

	var cu cachedUser
	if err := json.Unmarshal(raw, &cu); err != nil {
		return nil, false, fmt.Errorf("user cache decode: %w", err)
	}

	u := domain.User{
		Email:          cu.Email,
		Username:       cu.Username,
		FirstName:      cu.FirstName,
		LastName:       cu.LastName,
		Admin:          cu.Admin,
		HashedPassword: cu.HashedPassword,
		Enabled:        cu.Enabled,
	}.WithID(cu.ID)
	return &u, true, nil
}

// Set stores a persisted user (expires after the configured ttl). Users
// without an id are not cached.
func (c *UserCache) Set(ctx context.Context, user domain.User) error {
	if user.ID == nil {
		return nil
	}

	raw, err := json.Marshal(cachedUser{
		ID:             *user.ID,
		Email:          user.Email,
		Username:       user.Username,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Admin:          user.Admin,
		HashedPassword: user.HashedPassword,
		Enabled:        user.Enabled,
	})
	if err != nil {
		return fmt.Errorf("user cache encode: %w", err)
	}

	if err := c.client.Set(ctx, c.key(user.Username), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("user cache set: %w", err)
	}
	return nil
}

func (c *UserCache) key(username string) string {
	return "user:username:" + username
}
