package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/database/testutil"
	"github.com/charlesng35/menuguard/internal/models"
)

type legacyRow struct {
	bits       models.PermissionBits
	createData bool
	editOwn    bool
}

type matrixFixture struct {
	db    *gorm.DB
	role  models.Role
	menus []models.MenuEntry
}

// newMatrix stores one role and one page per row, granting each page the row's bits
// and legacy flags. Legacy flags are only written when the legacy columns exist.
func newMatrix(t *testing.T, legacy bool, rows ...legacyRow) matrixFixture {
	t.Helper()

	opts := []testutil.TestDBOption{testutil.WithAutoMigrate()}
	if legacy {
		opts = append(opts, testutil.WithLegacyColumns())
	}
	db := testutil.MustOpenTestDB(t, opts...)

	role := models.Role{Code: "staff", Name: "Staff", Active: true}
	require.NoError(t, db.Create(&role).Error)

	f := matrixFixture{db: db, role: role}
	for i, row := range rows {
		menu := models.MenuEntry{
			Category: "Operations",
			Page:     fmt.Sprintf("Page %d", i),
			URL:      fmt.Sprintf("/ops/%d", i),
			Level:    models.LevelPage,
			Enabled:  true,
			Order:    i,
		}
		require.NoError(t, db.Create(&menu).Error)
		f.menus = append(f.menus, menu)

		require.NoError(t, db.Create(&models.Permission{RoleID: role.ID, MenuID: menu.ID, PermissionBits: row.bits}).Error)
		if legacy {
			testutil.SetLegacyFlags(t, db, role.ID, menu.ID, row.createData, row.editOwn)
		}
	}
	return f
}

func (f matrixFixture) snapshot(t *testing.T) []models.Permission {
	t.Helper()
	var rows []models.Permission
	require.NoError(t, f.db.Order("role_id, menu_id").Find(&rows).Error)
	return rows
}

func (f matrixFixture) bits(t *testing.T, menuIdx int) models.PermissionBits {
	t.Helper()
	var row models.Permission
	require.NoError(t, f.db.Where("role_id = ? AND menu_id = ?", f.role.ID, f.menus[menuIdx].ID).Take(&row).Error)
	return row.PermissionBits
}

// mixedRows covers every legacy state: create only, already canonical, edit own only and
// no own-record access at all.
func mixedRows() []legacyRow {
	return []legacyRow{
		{bits: models.PermissionBits{CanReadData: true}, createData: true},
		{bits: models.PermissionBits{CanManageOwn: true, CanEditOthers: true}},
		{bits: models.PermissionBits{CanViewCategory: true, CanReadData: true}, editOwn: true},
		{bits: models.PermissionBits{CanReadData: true, CanEditOthers: true}},
	}
}

func TestMigrationIsMonotonic(t *testing.T) {
	f := newMatrix(t, true, mixedRows()...)
	migrator, err := NewMigrator(f.db)
	require.NoError(t, err)

	result, err := migrator.RunPermissionMigration(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, result.Inspected)
	require.Equal(t, 2, result.Updated)
	require.Equal(t, 2, result.Skipped)
	require.ElementsMatch(t, models.LegacyColumns, result.LegacyColumns)
	require.NotEmpty(t, result.RunID)

	require.Equal(t, models.PermissionBits{CanReadData: true, CanManageOwn: true}, f.bits(t, 0))
	require.Equal(t, models.PermissionBits{CanManageOwn: true, CanEditOthers: true}, f.bits(t, 1))
	require.Equal(t, models.PermissionBits{CanViewCategory: true, CanReadData: true, CanManageOwn: true}, f.bits(t, 2))
	require.Equal(t, models.PermissionBits{CanReadData: true, CanEditOthers: true}, f.bits(t, 3))

	// Legacy flags are kept for the manual column drop.
	var rows []models.LegacyPermission
	require.NoError(t, f.db.Order("role_id, menu_id").Find(&rows).Error)
	require.True(t, rows[0].CanCreateData)
	require.True(t, rows[2].CanEditOwn)
}

func TestMigrationIsIdempotent(t *testing.T) {
	f := newMatrix(t, true, mixedRows()...)
	migrator, err := NewMigrator(f.db)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = migrator.RunPermissionMigration(ctx)
	require.NoError(t, err)
	afterFirst := f.snapshot(t)

	second, err := migrator.RunPermissionMigration(ctx)
	require.NoError(t, err)
	require.Zero(t, second.Updated)
	require.Equal(t, 4, second.Inspected)
	require.Equal(t, 4, second.Skipped)
	require.Equal(t, afterFirst, f.snapshot(t))
}

func TestMigrationBatchesCoverWholeMatrix(t *testing.T) {
	f := newMatrix(t, true, mixedRows()...)
	migrator, err := NewMigrator(f.db, WithBatchSize(1))
	require.NoError(t, err)

	result, err := migrator.RunPermissionMigration(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, result.Inspected)
	require.Equal(t, 2, result.Updated)

	pending, err := migrator.Pending(context.Background())
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestMigrationWithoutLegacyColumnsIsNoop(t *testing.T) {
	f := newMatrix(t, false,
		legacyRow{bits: models.PermissionBits{CanReadData: true}},
		legacyRow{bits: models.PermissionBits{CanManageOwn: true}},
	)
	before := f.snapshot(t)

	migrator, err := NewMigrator(f.db)
	require.NoError(t, err)

	result, err := migrator.RunPermissionMigration(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Inspected)
	require.Zero(t, result.Updated)
	require.Equal(t, 2, result.Skipped)
	require.Empty(t, result.LegacyColumns)
	require.Empty(t, result.Conflicts)
	require.Equal(t, before, f.snapshot(t))

	pending, err := migrator.Pending(context.Background())
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestMigrationWithPartiallyDroppedLegacySchema(t *testing.T) {
	f := newMatrix(t, false,
		legacyRow{bits: models.PermissionBits{CanReadData: true}},
		legacyRow{bits: models.PermissionBits{CanReadData: true}},
	)
	// can_create_data was dropped already; only can_edit_own remains.
	require.NoError(t, f.db.Migrator().AddColumn(&models.LegacyPermission{}, "CanEditOwn"))
	require.False(t, f.db.Migrator().HasColumn(&models.LegacyPermission{}, models.LegacyColumnCreateData))
	require.NoError(t, f.db.Model(&models.LegacyPermission{}).
		Where("role_id = ? AND menu_id = ?", f.role.ID, f.menus[0].ID).
		UpdateColumn(models.LegacyColumnEditOwn, true).Error)

	migrator, err := NewMigrator(f.db)
	require.NoError(t, err)

	pending, err := migrator.Pending(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, pending)

	result, err := migrator.RunPermissionMigration(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{models.LegacyColumnEditOwn}, result.LegacyColumns)
	require.Equal(t, 2, result.Inspected)
	require.Equal(t, 1, result.Updated)
	require.Equal(t, 1, result.Skipped)

	require.Equal(t, models.PermissionBits{CanReadData: true, CanManageOwn: true}, f.bits(t, 0))
	require.Equal(t, models.PermissionBits{CanReadData: true}, f.bits(t, 1))

	pending, err = migrator.Pending(context.Background())
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestMigrationReportsConflicts(t *testing.T) {
	f := newMatrix(t, true, mixedRows()...)
	migrator, err := NewMigrator(f.db)
	require.NoError(t, err)

	result, err := migrator.RunPermissionMigration(context.Background())
	require.NoError(t, err)
	require.Equal(t, []GrantRef{{RoleID: f.role.ID, MenuID: f.menus[1].ID}}, result.Conflicts)

	run, err := migrator.LastRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, result.RunID, run.ID)
	require.Equal(t, models.MigrationCompleted, run.Status)
	require.Equal(t, 4, run.Inspected)
	require.Equal(t, 2, run.Updated)
	require.Equal(t, 2, run.Skipped)
	require.NotNil(t, run.FinishedAt)

	var recorded []GrantRef
	require.NoError(t, json.Unmarshal(run.Conflicts, &recorded))
	require.Equal(t, result.Conflicts, recorded)
}

func TestMigrationPendingCountsLegacyGrants(t *testing.T) {
	f := newMatrix(t, true, mixedRows()...)
	migrator, err := NewMigrator(f.db)
	require.NoError(t, err)

	ctx := context.Background()
	pending, err := migrator.Pending(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, pending)

	_, err = migrator.RunPermissionMigration(ctx)
	require.NoError(t, err)

	pending, err = migrator.Pending(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestMigrationRefusesWhileClaimHeld(t *testing.T) {
	f := newMatrix(t, true, mixedRows()...)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, f.db.Create(&models.MigrationLock{
		Name:      MigrationManageOwn,
		RunID:     "other-run",
		ClaimedAt: now.Add(-time.Minute),
		ExpiresAt: now.Add(time.Minute),
	}).Error)

	migrator, err := NewMigrator(f.db, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	_, err = migrator.RunPermissionMigration(context.Background())
	require.ErrorIs(t, err, ErrMigrationInProgress)

	// Nothing was written and the foreign claim is untouched.
	require.Equal(t, models.PermissionBits{CanReadData: true}, f.bits(t, 0))
	var lock models.MigrationLock
	require.NoError(t, f.db.Take(&lock, "name = ?", MigrationManageOwn).Error)
	require.Equal(t, "other-run", lock.RunID)
}

func TestMigrationTakesOverExpiredClaim(t *testing.T) {
	f := newMatrix(t, true, mixedRows()...)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, f.db.Create(&models.MigrationLock{
		Name:      MigrationManageOwn,
		RunID:     "crashed-run",
		ClaimedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(-time.Minute),
	}).Error)

	migrator, err := NewMigrator(f.db, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	result, err := migrator.RunPermissionMigration(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Updated)

	var count int64
	require.NoError(t, f.db.Model(&models.MigrationLock{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCancelledMigrationLeavesValidMatrix(t *testing.T) {
	f := newMatrix(t, true, mixedRows()...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The third clock reading happens while extending the claim after the first batch.
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 3 {
			cancel()
		}
		return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	}

	migrator, err := NewMigrator(f.db, WithBatchSize(1), WithClock(clock))
	require.NoError(t, err)

	result, err := migrator.RunPermissionMigration(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, result.Inspected)
	require.Equal(t, 1, result.Updated)

	require.True(t, f.bits(t, 0).CanManageOwn)
	require.False(t, f.bits(t, 2).CanManageOwn)

	run, err := migrator.LastRun(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.MigrationFailed, run.Status)
	require.NotEmpty(t, run.Error)

	pending, err := migrator.Pending(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, pending)

	// The claim was released, so a fresh run finishes the job.
	result, err = migrator.RunPermissionMigration(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Updated)
	require.True(t, f.bits(t, 2).CanManageOwn)
}

func TestNewMigratorRequiresDB(t *testing.T) {
	_, err := NewMigrator(nil)
	require.Error(t, err)
}
