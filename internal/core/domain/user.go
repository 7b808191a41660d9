package domain

import "unicode/utf8"

// Username length bounds shared by validation and repository lookups.
const (
	UsernameMinLength = 4
	UsernameMaxLength = 15
)

// User is the persisted account record.
//
// ID stays nil until the record has been created by a repository; after
// that it never changes.
type User struct {
	ID             *int64 `json:"id"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Admin          bool   `json:"admin"`
	HashedPassword string `json:"-"`
	Enabled        bool   `json:"enabled"`
}

// CreateUserRequest is the unvalidated input of a registration.
type CreateUserRequest struct {
	Email          string `json:"email"`
	Username       string `json:"username"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Admin          bool   `json:"admin"`
	HashedPassword string `json:"hashedPassword"`
}

// NewUser builds an unsaved, enabled User from a request that already passed validation.
func NewUser(req CreateUserRequest) User {
	return User{
		Email:          req.Email,
		Username:       req.Username,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Admin:          req.Admin,
		HashedPassword: req.HashedPassword,
		Enabled:        true,
	}
}

// WithID returns a copy of u carrying the given identity.
func (u User) WithID(id int64) User {
	u.ID = &id
	return u
}

// Clone returns a copy that shares no memory with u.
func (u User) Clone() User {
	if u.ID != nil {
		return u.WithID(*u.ID)
	}
	return u
}

// UsernameInRange reports whether username has an acceptable length for lookups.
func UsernameInRange(username string) bool {
	n := utf8.RuneCountInString(username)
	return n >= UsernameMinLength && n <= UsernameMaxLength
}
