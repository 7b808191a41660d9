package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/user-registry/internal/core/domain"
)

const (
	usersCollection    = "users"
	countersCollection = "counters"

	indexUsername = "uq_users_username"
	indexEmail    = "uq_users_email"
)

// UserRepository stores users in MongoDB. Identities are allocated from a
// counters document so they stay integral and are never handed out twice.
type UserRepository struct {
	coll     *mongo.Collection
	counters *mongo.Collection
	timeout  time.Duration
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		coll:     db.Collection(usersCollection),
		counters: db.Collection(countersCollection),
		timeout:  defaultTimeout,
	}
}

// WithTimeout overrides the deadline applied to each operation. Non-positive
// values keep the current one.
func (r *UserRepository) WithTimeout(d time.Duration) *UserRepository {
	if d > 0 {
		r.timeout = d
	}
	return r
}

type mongoUser struct {
	ID             int64  `bson:"_id"`
	Email          string `bson:"email"`
	Username       string `bson:"username"`
	FirstName      string `bson:"first_name"`
	LastName       string `bson:"last_name"`
	Admin          bool   `bson:"admin"`
	HashedPassword string `bson:"hashed_password"`
	Enabled        bool   `bson:"enabled"`
}

type counter struct {
	Seq int64 `bson:"seq"`
}

// EnsureIndexes creates the unique indexes that decide username and email conflicts.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexUsername),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexEmail),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, &domain.StorageError{Op: "list users", Err: err}
	}

	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, &domain.StorageError{Op: "list users: decode", Err: err}
	}

	users := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toDomain())
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID != nil {
		panic(fmt.Sprintf("mongo: create user %q with preassigned id %d", user.Username, *user.ID))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// The id allocation and the insert share one session so they run on the
	// same server and are released together on every path.
	var id int64
	err := r.coll.Database().Client().UseSession(ctx, func(sc mongo.SessionContext) error {
		var err error
		if id, err = r.nextID(sc); err != nil {
			return err
		}

		doc := fromDomain(user)
		doc.ID = id
		if _, err := r.coll.InsertOne(sc, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return &domain.ConflictError{Field: conflictField(err)}
			}
			return &domain.StorageError{Op: "insert user", Err: err}
		}
		return nil
	})
	if err != nil {
		var (
			conflict *domain.ConflictError
			serr     *domain.StorageError
		)
		if errors.As(err, &conflict) || errors.As(err, &serr) {
			return domain.User{}, err
		}
		return domain.User{}, &domain.StorageError{Op: "user session", Err: err}
	}

	return user.WithID(id), nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if !domain.UsernameInRange(username) {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var mu mongoUser
	if err := r.coll.FindOne(ctx, bson.M{"username": username}).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, &domain.StorageError{Op: "find user", Err: err}
	}

	u := mu.toDomain()
	return &u, nil
}

func (r *UserRepository) Get(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var mu mongoUser
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user id %d: %w", id, domain.ErrUserNotFound)
		}
		return nil, &domain.StorageError{Op: "get user", Err: err}
	}

	u := mu.toDomain()
	return &u, nil
}

// nextID increments the users sequence atomically. A failed insert burns
// the id it drew.
func (r *UserRepository) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var c counter
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": usersCollection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, &domain.StorageError{Op: "allocate user id", Err: err}
	}
	return c.Seq, nil
}

// conflictField names the field whose unique index rejected the write.
// Duplicate key messages look like:
// E11000 duplicate key error collection: registry.users index: uq_users_email dup key: { ... }
func conflictField(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, indexUsername):
		return "username"
	case strings.Contains(msg, indexEmail):
		return "email"
	default:
		return ""
	}
}

func fromDomain(u domain.User) mongoUser {
	return mongoUser{
		Email:          u.Email,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Admin:          u.Admin,
		HashedPassword: u.HashedPassword,
		Enabled:        u.Enabled,
	}
}

func (m mongoUser) toDomain() domain.User {
	return domain.User{
		Email:          m.Email,
		Username:       m.Username,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		Admin:          m.Admin,
		HashedPassword: m.HashedPassword,
		Enabled:        m.Enabled,
	}.WithID(m.ID)
}
