package users

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/common"
	"github.com/dmitrijs2005/aurachat/internal/filex"
)

// jsonUser is the on-disk shape of one record. Salt and verifier are base64.
type jsonUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Salt         string    `json:"salt"`
	Verifier     string    `json:"verifier"`
	Address      string    `json:"address"`
	RegisteredAt time.Time `json:"registered_at"`
	LastAccess   time.Time `json:"last_access"`
}

type jsonFile struct {
	Users []jsonUser `json:"users"`
}

// JSONRepository stores user records in a single JSON file. One mutex
// serializes every read-modify-write so two concurrent registrations cannot
// lose each other's update.
type JSONRepository struct {
	path string
	mu   sync.Mutex

	// test seam
	nowFn func() time.Time
}

func NewJSONRepository(path string) (*JSONRepository, error) {
	if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	r := &JSONRepository{path: path, nowFn: time.Now}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := r.saveLocked(&jsonFile{Users: []jsonUser{}}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *JSONRepository) loadLocked() (*jsonFile, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	f := &jsonFile{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.path, err)
	}
	return f, nil
}

func (r *JSONRepository) saveLocked(f *jsonFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(r.path, data)
}

func (r *JSONRepository) Create(ctx context.Context, user *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.loadLocked()
	if err != nil {
		return nil, err
	}
	for _, u := range f.Users {
		if u.Username == user.Username {
			return nil, common.ErrorAlreadyExists
		}
	}

	now := r.nowFn()
	user.RegisteredAt = now
	user.LastAccess = now

	f.Users = append(f.Users, jsonUser{
		ID:           user.ID,
		Username:     user.Username,
		Salt:         base64.StdEncoding.EncodeToString(user.Salt),
		Verifier:     base64.StdEncoding.EncodeToString(user.Verifier),
		Address:      user.Address,
		RegisteredAt: user.RegisteredAt,
		LastAccess:   user.LastAccess,
	})
	if err := r.saveLocked(f); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *JSONRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.loadLocked()
	if err != nil {
		return nil, err
	}
	for _, u := range f.Users {
		if u.Username == username {
			salt, err := base64.StdEncoding.DecodeString(u.Salt)
			if err != nil {
				return nil, fmt.Errorf("corrupt salt for %s: %w", username, err)
			}
			verifier, err := base64.StdEncoding.DecodeString(u.Verifier)
			if err != nil {
				return nil, fmt.Errorf("corrupt verifier for %s: %w", username, err)
			}
			return &User{
				ID:           u.ID,
				Username:     u.Username,
				Salt:         salt,
				Verifier:     verifier,
				Address:      u.Address,
				RegisteredAt: u.RegisteredAt,
				LastAccess:   u.LastAccess,
			}, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *JSONRepository) UpdateLastAccess(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.loadLocked()
	if err != nil {
		return err
	}
	for i := range f.Users {
		if f.Users[i].Username == username {
			f.Users[i].LastAccess = r.nowFn()
			return r.saveLocked(f)
		}
	}
	return common.ErrorNotFound
}

func (r *JSONRepository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.loadLocked()
	if err != nil {
		return 0, err
	}
	return len(f.Users), nil
}

func (r *JSONRepository) Usernames(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.loadLocked()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Users))
	for _, u := range f.Users {
		names = append(names, u.Username)
	}
	return names, nil
}
