// Package store provides gorm-backed access to the menu catalog, the role store and the
// permission matrix.
package store

import (
	"context"
	"errors"
)

var (
	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = errors.New("store: role not found")
	// ErrMenuNotFound indicates the requested menu entry does not exist.
	ErrMenuNotFound = errors.New("store: menu entry not found")
	// ErrGrantNotFound indicates there is no permission row for the (role, menu) pair.
	ErrGrantNotFound = errors.New("store: grant not found")
	// ErrDuplicateURL indicates more than one entry carries the requested url.
	ErrDuplicateURL = errors.New("store: url shared by several menu entries")

	errNilDB = errors.New("store: db is required")
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
