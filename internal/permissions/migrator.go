package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/models"
)

// MigrationManageOwn names the consolidation of can_create_data and can_edit_own into
// can_manage_own.
const MigrationManageOwn = "consolidate_can_manage_own"

const (
	defaultBatchSize = 500
	defaultLockTTL   = 2 * time.Minute
)

// GrantRef identifies one row of the permission matrix.
type GrantRef struct {
	RoleID uint `json:"role_id"`
	MenuID uint `json:"menu_id"`
}

// MigrationResult reports what a migration run saw and changed.
type MigrationResult struct {
	RunID     string `json:"run_id"`
	Inspected int    `json:"inspected"`
	Updated   int    `json:"updated"`
	Skipped   int    `json:"skipped"`
	// LegacyColumns lists the deprecated columns present when the run started.
	LegacyColumns []string `json:"legacy_columns"`
	// Conflicts are rows granting can_manage_own with neither legacy flag set. They are
	// reported as data-quality warnings and left untouched.
	Conflicts []GrantRef `json:"conflicts,omitempty"`
}

// Migrator folds the deprecated own-record flags into can_manage_own. Runs are
// idempotent and monotonic: can_manage_own only ever goes from false to true and no
// other column is written.
type Migrator struct {
	db        *gorm.DB
	batchSize int
	lockTTL   time.Duration
	now       func() time.Time
}

// MigratorOption customises a Migrator.
type MigratorOption func(*Migrator)

// WithBatchSize sets how many rows are read per batch.
func WithBatchSize(size int) MigratorOption {
	return func(m *Migrator) {
		if size > 0 {
			m.batchSize = size
		}
	}
}

// WithLockTTL sets how long a claim stays valid without being extended.
func WithLockTTL(ttl time.Duration) MigratorOption {
	return func(m *Migrator) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MigratorOption {
	return func(m *Migrator) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMigrator constructs a migrator for the provided database.
func NewMigrator(db *gorm.DB, opts ...MigratorOption) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("permission migrator: db is required")
	}
	m := &Migrator{
		db:        db,
		batchSize: defaultBatchSize,
		lockTTL:   defaultLockTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// RunPermissionMigration claims the migration, walks the whole matrix in batches and
// sets can_manage_own on every row that still lacks it but holds a legacy flag. It returns
// ErrMigrationInProgress when another run holds an unexpired claim. A cancelled run
// returns the counts so far together with the context error; rows already written stay
// correctly migrated.
func (m *Migrator) RunPermissionMigration(ctx context.Context) (MigrationResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	claim, err := m.claim(ctx, MigrationManageOwn)
	if err != nil {
		return MigrationResult{}, err
	}
	// Bookkeeping must survive a cancelled run.
	bookkeeping := context.WithoutCancel(ctx)
	defer func() {
		_ = claim.release(bookkeeping)
	}()

	run := models.MigrationRun{
		ID:        claim.runID,
		Name:      MigrationManageOwn,
		Status:    models.MigrationRunning,
		StartedAt: m.clock(),
	}
	if err := m.db.WithContext(bookkeeping).Create(&run).Error; err != nil {
		return MigrationResult{}, fmt.Errorf("permission migrator: record run: %w", err)
	}

	result, runErr := m.migrate(ctx, claim)
	result.RunID = run.ID
	result.Skipped = result.Inspected - result.Updated

	if err := m.finishRun(bookkeeping, &run, result, runErr); err != nil {
		if runErr != nil {
			return result, multierr.Append(runErr, err)
		}
		return result, err
	}
	return result, runErr
}

// Pending counts rows that a run would still update. It is zero once every legacy grant
// has been folded into can_manage_own, which is the precondition for dropping the legacy
// columns.
func (m *Migrator) Pending(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	legacy := m.presentLegacyColumns()
	if len(legacy) == 0 {
		return 0, nil
	}

	var count int64
	err := m.db.WithContext(ctx).
		Model(&models.LegacyPermission{}).
		Where("can_manage_own = ?", false).
		Where(legacyGrantCondition(m.db, legacy)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("permission migrator: count pending: %w", err)
	}
	return count, nil
}

// LastRun returns the most recent recorded run of the migration, or nil when none exists.
func (m *Migrator) LastRun(ctx context.Context) (*models.MigrationRun, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var run models.MigrationRun
	err := m.db.WithContext(ctx).
		Where("name = ?", MigrationManageOwn).
		Order("started_at DESC").
		Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("permission migrator: last run: %w", err)
	}
	return &run, nil
}

func (m *Migrator) migrate(ctx context.Context, claim *migrationClaim) (MigrationResult, error) {
	legacy := m.presentLegacyColumns()
	result := MigrationResult{LegacyColumns: legacy}

	columns := append([]string{"role_id", "menu_id", "can_manage_own"}, legacy...)

	var (
		lastRole uint
		lastMenu uint
		first    = true
	)
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		query := m.db.WithContext(ctx).
			Model(&models.LegacyPermission{}).
			Select(columns).
			Order("role_id ASC").
			Order("menu_id ASC").
			Limit(m.batchSize)
		if !first {
			query = query.Where("role_id > ? OR (role_id = ? AND menu_id > ?)", lastRole, lastRole, lastMenu)
		}

		var batch []models.LegacyPermission
		if err := query.Find(&batch).Error; err != nil {
			return result, fmt.Errorf("permission migrator: read batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		updated, err := m.applyBatch(ctx, batch, len(legacy) > 0, &result)
		result.Updated += updated
		if err != nil {
			return result, err
		}

		last := batch[len(batch)-1]
		lastRole, lastMenu, first = last.RoleID, last.MenuID, false

		if err := claim.extend(ctx); err != nil {
			return result, err
		}
		if len(batch) < m.batchSize {
			break
		}
	}

	return result, nil
}

func (m *Migrator) applyBatch(ctx context.Context, batch []models.LegacyPermission, hasLegacy bool, result *MigrationResult) (int, error) {
	updated := 0
	conflicts := len(result.Conflicts)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range batch {
			result.Inspected++

			if row.CanManageOwn {
				if hasLegacy && !row.HasLegacyGrant() {
					result.Conflicts = append(result.Conflicts, GrantRef{RoleID: row.RoleID, MenuID: row.MenuID})
				}
				continue
			}
			if !row.HasLegacyGrant() {
				continue
			}

			// The guard keeps overlapping runs from counting the same row twice.
			res := tx.Model(&models.LegacyPermission{}).
				Where("role_id = ? AND menu_id = ? AND can_manage_own = ?", row.RoleID, row.MenuID, false).
				UpdateColumn("can_manage_own", true)
			if res.Error != nil {
				return fmt.Errorf("permission migrator: update %d/%d: %w", row.RoleID, row.MenuID, res.Error)
			}
			updated += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		// Nothing from a rolled back batch is counted.
		result.Inspected -= len(batch)
		result.Conflicts = result.Conflicts[:conflicts]
		return 0, err
	}
	return updated, nil
}

func (m *Migrator) finishRun(ctx context.Context, run *models.MigrationRun, result MigrationResult, runErr error) error {
	finished := m.clock()
	updates := map[string]any{
		"inspected":   result.Inspected,
		"updated":     result.Updated,
		"skipped":     result.Skipped,
		"finished_at": finished,
		"status":      models.MigrationCompleted,
	}
	if len(result.Conflicts) > 0 {
		encoded, err := json.Marshal(result.Conflicts)
		if err != nil {
			return fmt.Errorf("permission migrator: encode conflicts: %w", err)
		}
		updates["conflicts"] = datatypes.JSON(encoded)
	}
	if runErr != nil {
		updates["status"] = models.MigrationFailed
		updates["error"] = runErr.Error()
	}

	if err := m.db.WithContext(ctx).Model(run).Updates(updates).Error; err != nil {
		return fmt.Errorf("permission migrator: finish run %s: %w", run.ID, err)
	}
	return nil
}

func (m *Migrator) presentLegacyColumns() []string {
	migrator := m.db.Migrator()
	present := make([]string, 0, len(models.LegacyColumns))
	for _, column := range models.LegacyColumns {
		if migrator.HasColumn(&models.LegacyPermission{}, column) {
			present = append(present, column)
		}
	}
	return present
}

func legacyGrantCondition(db *gorm.DB, columns []string) *gorm.DB {
	cond := db.Session(&gorm.Session{NewDB: true})
	for i, column := range columns {
		if i == 0 {
			cond = cond.Where(column+" = ?", true)
			continue
		}
		cond = cond.Or(column+" = ?", true)
	}
	return cond
}

func (m *Migrator) clock() time.Time {
	return m.now().UTC()
}
