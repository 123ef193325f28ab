// Package repository implements reservation and user persistence on top of
// the key-value store contract.  It defines sentinel errors that higher
// layers translate into their own typed failures.
package repository

import "errors"

// ErrNotFound is returned when no record exists under the requested id.
var ErrNotFound = errors.New("record not found")

// ErrUsernameExists is returned by UserRepo.Create when the username is
// already taken, by an active or an inactive account alike.
var ErrUsernameExists = errors.New("username already exists")
