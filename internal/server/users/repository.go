// Package users implements the credential store: durable user records with
// verify, exists, register and touch-last-access operations. Storage is
// pluggable behind the Repository interface; a JSON file and a Postgres
// implementation are provided.
package users

import "context"

// Repository is the persistence contract for user records. Create must fail
// with common.ErrorAlreadyExists when the username is taken, and every
// implementation must serialize read-modify-write sequences so concurrent
// registrations cannot lose updates.
type Repository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdateLastAccess(ctx context.Context, username string) error
	Count(ctx context.Context) (int, error)
	Usernames(ctx context.Context) ([]string, error)
}
