package users

import "time"

// User is one registered account. The password itself is never stored: Salt
// and Verifier hold the argon2id material used to check it.
type User struct {
	ID           string
	Username     string
	Salt         []byte
	Verifier     []byte
	Address      string
	RegisteredAt time.Time
	LastAccess   time.Time
}
