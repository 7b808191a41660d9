package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/99minutos/user-registry/internal/core/domain"
)

const (
	userColumns = `id, email, username, first_name, last_name, admin, hashed_password, enabled`

	listUsersQuery = `SELECT ` + userColumns + ` FROM users ORDER BY id`

	insertUserQuery = `INSERT INTO users (email, username, first_name, last_name, admin, hashed_password, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	findUserByUsernameQuery = `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	getUserQuery = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
)

// UserRepository implements ports.UserRepository over database/sql.
type UserRepository struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
}

func NewUserRepository(db *sql.DB, dialect Dialect) *UserRepository {
	return &UserRepository{db: db, dialect: dialect, timeout: defaultTimeout}
}

// WithTimeout overrides the per-call deadline applied to every statement.
func (r *UserRepository) WithTimeout(d time.Duration) *UserRepository {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// List returns all users ordered by id.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(listUsersQuery))
	if err != nil {
		return nil, &domain.StorageError{Op: "list users", Err: err}
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: "list users: scan", Err: err}
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list users", Err: err}
	}
	return users, nil
}

// Create inserts user inside its own transaction. The unique constraints on
// username and email decide conflicts, so two concurrent inserts of the same
// username cannot both commit.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID != nil {
		panic(fmt.Sprintf("sqlstore: create user %q with preassigned id %d", user.Username, *user.ID))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, &domain.StorageError{Op: "create user: begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, r.dialect.rebind(insertUserQuery),
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Admin,
		user.HashedPassword,
		user.Enabled,
	).Scan(&id)
	if err != nil {
		return domain.User{}, r.translate("create user", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.User{}, r.translate("create user: commit", err)
	}

	return user.WithID(id), nil
}

// FindByUsername returns (nil, nil) when no row matches. Usernames outside
// the accepted length range cannot exist and are answered without a query.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if !domain.UsernameInRange(username) {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	u, err := scanUser(r.db.QueryRowContext(ctx, r.dialect.rebind(findUserByUsernameQuery), username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &domain.StorageError{Op: "find user by username", Err: err}
	}
	return &u, nil
}

func (r *UserRepository) Get(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	u, err := scanUser(r.db.QueryRowContext(ctx, r.dialect.rebind(getUserQuery), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user id %d: %w", id, domain.ErrUserNotFound)
		}
		return nil, &domain.StorageError{Op: "get user", Err: err}
	}
	return &u, nil
}

func (r *UserRepository) translate(op string, err error) error {
	if field, ok := r.dialect.uniqueField(err); ok {
		return &domain.ConflictError{Field: field}
	}
	return &domain.StorageError{Op: op, Err: err}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (domain.User, error) {
	var (
		id int64
		u  domain.User
	)
	err := row.Scan(
		&id,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.Admin,
		&u.HashedPassword,
		&u.Enabled,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u.WithID(id), nil
}
