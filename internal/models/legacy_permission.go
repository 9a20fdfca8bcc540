package models

// Column names of the flags that can_manage_own superseded. They may or may not still
// exist in a given database.
const (
	LegacyColumnCreateData = "can_create_data"
	LegacyColumnEditOwn    = "can_edit_own"
)

// LegacyColumns lists every deprecated permission column.
var LegacyColumns = []string{LegacyColumnCreateData, LegacyColumnEditOwn}

// LegacyPermission reads the permissions table in its pre-consolidation shape, where
// creating and editing own records were separate flags. Only the migration uses it.
type LegacyPermission struct {
	RoleID       uint `gorm:"primaryKey;autoIncrement:false"`
	MenuID       uint `gorm:"primaryKey;autoIncrement:false"`
	CanManageOwn bool `gorm:"not null"`

	CanCreateData bool `gorm:"column:can_create_data;not null;default:false"`
	CanEditOwn    bool `gorm:"column:can_edit_own;not null;default:false"`
}

// TableName overrides the default table name for GORM.
func (LegacyPermission) TableName() string {
	return "permissions"
}

// HasLegacyGrant reports whether either deprecated flag is set.
func (p LegacyPermission) HasLegacyGrant() bool {
	return p.CanCreateData || p.CanEditOwn
}
