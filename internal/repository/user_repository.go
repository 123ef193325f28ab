package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valetpark/valetpark/internal/model"
	"github.com/valetpark/valetpark/internal/store"
)

const (
	userKeyPrefix    = "user:"
	usernameIndexKey = "index:user:username:"
)

func userKey(id string) string { return userKeyPrefix + id }

func usernameKey(username string) string {
	return usernameIndexKey + strings.ToLower(strings.TrimSpace(username))
}

// UserRepo provides CRUD over operator accounts plus the username index
// used for login lookups.
type UserRepo struct {
	store store.Store
}

// NewUserRepo returns a UserRepo bound to the given store.
func NewUserRepo(s store.Store) *UserRepo { return &UserRepo{store: s} }

// Create persists a new user.  The username must be free; inactive
// accounts keep their name reserved.  The id and CreatedAt are assigned
// here.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	if _, err := r.store.Get(ctx, usernameKey(u.Username)); err == nil {
		return ErrUsernameExists
	} else if !errors.Is(err, store.ErrKeyNotFound) {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	if err := r.put(ctx, u); err != nil {
		return err
	}
	return r.store.Set(ctx, usernameKey(u.Username), []byte(u.ID))
}

// GetByID loads a user record.  ErrNotFound for unknown ids.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	raw, err := r.store.Get(ctx, userKey(id))
	if errors.Is(err, store.ErrKeyNotFound) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return model.User{}, fmt.Errorf("decode user %s: %w", id, err)
	}
	return u, nil
}

// GetByUsername resolves the username index and loads the record.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	id, err := r.store.Get(ctx, usernameKey(username))
	if errors.Is(err, store.ErrKeyNotFound) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, string(id))
}

// Update overwrites a user record.  Usernames are immutable; the index is
// never moved.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	if _, err := r.GetByID(ctx, u.ID); err != nil {
		return err
	}
	return r.put(ctx, u)
}

// List returns all user records ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	raws, err := r.store.ScanPrefix(ctx, userKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(raws))
	for _, raw := range raws {
		var u model.User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		out = append(out, u)
	}
	return out, nil
}

// Count reports how many users exist.  Used at startup to decide whether
// the initial admin account must be seeded.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	raws, err := r.store.ScanPrefix(ctx, userKeyPrefix)
	if err != nil {
		return 0, err
	}
	return len(raws), nil
}

func (r *UserRepo) put(ctx context.Context, u *model.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", u.ID, err)
	}
	return r.store.Set(ctx, userKey(u.ID), raw)
}
