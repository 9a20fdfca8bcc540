package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/database/testutil"
)

type recordingInvalidator struct {
	mu      sync.Mutex
	batches [][]uint
	err     error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, roleIDs ...uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]uint(nil), roleIDs...))
	return r.err
}

func (r *recordingInvalidator) Batches() [][]uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]uint(nil), r.batches...)
}

func (r *recordingInvalidator) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = nil
}

func setupPermissionServiceTest(t *testing.T) (*gorm.DB, *PermissionService, *recordingInvalidator) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	invalidator := &recordingInvalidator{}
	svc, err := NewPermissionService(db, invalidator)
	require.NoError(t, err)
	return db, svc, invalidator
}

func boolPtr(v bool) *bool { return &v }
