package permissions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/menuguard/internal/models"
)

// migrationClaim is a held migration_locks row.
type migrationClaim struct {
	db    *gorm.DB
	name  string
	runID string
	ttl   time.Duration
	now   func() time.Time
}

// claim takes the named lock row. A row held by another run is only taken over once it
// has expired.
func (m *Migrator) claim(ctx context.Context, name string) (*migrationClaim, error) {
	c := &migrationClaim{
		db:    m.db,
		name:  name,
		runID: uuid.NewString(),
		ttl:   m.lockTTL,
		now:   m.clock,
	}
	now := c.now()

	lock := models.MigrationLock{
		Name:      name,
		RunID:     c.runID,
		ClaimedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	res := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&lock)
	if res.Error != nil {
		return nil, fmt.Errorf("permission migrator: claim %s: %w", name, res.Error)
	}
	if res.RowsAffected == 1 {
		return c, nil
	}

	res = m.db.WithContext(ctx).
		Model(&models.MigrationLock{}).
		Where("name = ? AND expires_at < ?", name, now).
		Updates(map[string]any{
			"run_id":     c.runID,
			"claimed_at": now,
			"expires_at": now.Add(c.ttl),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("permission migrator: take over %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMigrationInProgress, name)
	}
	return c, nil
}

// extend pushes the expiry forward. It fails when the claim was lost to another run.
func (c *migrationClaim) extend(ctx context.Context) error {
	expires := c.now().Add(c.ttl)
	if err := ctx.Err(); err != nil {
		return err
	}
	res := c.db.WithContext(ctx).
		Model(&models.MigrationLock{}).
		Where("name = ? AND run_id = ?", c.name, c.runID).
		Update("expires_at", expires)
	if res.Error != nil {
		return fmt.Errorf("permission migrator: extend claim %s: %w", c.name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: claim %s lost", ErrMigrationInProgress, c.name)
	}
	return nil
}

func (c *migrationClaim) release(ctx context.Context) error {
	err := c.db.WithContext(ctx).
		Where("name = ? AND run_id = ?", c.name, c.runID).
		Delete(&models.MigrationLock{}).Error
	if err != nil {
		return fmt.Errorf("permission migrator: release claim %s: %w", c.name, err)
	}
	return nil
}
