package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/user-registry/internal/core/domain"
)

var rowColumns = []string{"id", "email", "username", "first_name", "last_name", "admin", "hashed_password", "enabled"}

// setupMockDB wires a sqlmock connection to a Postgres-dialect repository.
func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *UserRepository) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err, "Failed to create mock database")
	t.Cleanup(func() { _ = db.Close() })

	return db, mock, NewUserRepository(db, Postgres)
}

func insertArgs(u domain.User) []driver.Value {
	return []driver.Value{u.Email, u.Username, u.FirstName, u.LastName, u.Admin, u.HashedPassword, u.Enabled}
}

func TestPostgres_Create_Success(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	u := newUser("alice", "alice@example.com")

	mock.ExpectBegin()
	mock.ExpectQuery(insertUserQuery).
		WithArgs(insertArgs(u)...).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	created, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	require.NotNil(t, created.ID)
	assert.Equal(t, int64(7), *created.ID)
	assert.Equal(t, "alice", created.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Create_UniqueViolation(t *testing.T) {
	cases := []struct {
		constraint string
		field      string
	}{
		{constraintUsername, "username"},
		{constraintEmail, "email"},
		{"", ""},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			_, mock, repo := setupMockDB(t)
			u := newUser("alice", "alice@example.com")

			mock.ExpectBegin()
			mock.ExpectQuery(insertUserQuery).
				WithArgs(insertArgs(u)...).
				WillReturnError(&pq.Error{Code: "23505", Constraint: tc.constraint})
			mock.ExpectRollback()

			_, err := repo.Create(context.Background(), u)

			var conflict *domain.ConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, tc.field, conflict.Field)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgres_Create_OtherErrorIsStorageError(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	u := newUser("alice", "alice@example.com")

	mock.ExpectBegin()
	mock.ExpectQuery(insertUserQuery).
		WithArgs(insertArgs(u)...).
		WillReturnError(&pq.Error{Code: "57014", Message: "canceling statement due to statement timeout"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), u)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NotErrorIs(t, err, domain.ErrUserExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Create_CommitFailure(t *testing.T) {
	_, mock, repo := setupMockDB(t)
	u := newUser("alice", "alice@example.com")

	mock.ExpectBegin()
	mock.ExpectQuery(insertUserQuery).
		WithArgs(insertArgs(u)...).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "23505", Constraint: constraintEmail})

	_, err := repo.Create(context.Background(), u)

	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "email", conflict.Field)
}

func TestPostgres_Create_BeginFailure(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := repo.Create(context.Background(), newUser("alice", "alice@example.com"))
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_List(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(listUsersQuery).WillReturnRows(
		sqlmock.NewRows(rowColumns).
			AddRow(int64(1), "alice@example.com", "alice", "Alice", "Liddell", true, "h1", true).
			AddRow(int64(2), "bobby@example.com", "bobby", "Bob", "Builder", false, "h2", false),
	)

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(1), *users[0].ID)
	assert.True(t, users[0].Admin)
	assert.Equal(t, "bobby", users[1].Username)
	assert.False(t, users[1].Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_List_QueryError(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(listUsersQuery).WillReturnError(sql.ErrConnDone)

	_, err := repo.List(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestPostgres_FindByUsername_NotFound(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(findUserByUsernameQuery).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(rowColumns))

	got, err := repo.FindByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindByUsername_OutOfRangeSkipsQuery(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	got, err := repo.FindByUsername(context.Background(), "ab")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindByUsername_DatabaseError(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(findUserByUsernameQuery).
		WithArgs("alice").
		WillReturnError(errors.New("boom"))

	_, err := repo.FindByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestPostgres_Get(t *testing.T) {
	_, mock, repo := setupMockDB(t)

	mock.ExpectQuery(getUserQuery).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow(int64(3), "carol@example.com", "carol", "Carol", "Danvers", false, "h3", true))
	mock.ExpectQuery(getUserQuery).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(rowColumns))

	got, err := repo.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "carol", got.Username)

	_, err = repo.Get(context.Background(), 4)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name)

	d, err = DialectFor("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", d.Driver)

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestSQLiteRebind(t *testing.T) {
	assert.Equal(t, "SELECT * FROM users WHERE username = ? AND id = ?",
		SQLite.rebind("SELECT * FROM users WHERE username = $1 AND id = $2"))
	assert.Equal(t, findUserByUsernameQuery, Postgres.rebind(findUserByUsernameQuery))
}
