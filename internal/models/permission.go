package models

// PermissionBits is the capability bit-set granted to a role at one menu entry.
// No bit implies another.
type PermissionBits struct {
	// Coarse legacy tier kept for older call sites.
	CanRead  bool `gorm:"not null" json:"can_read"`
	CanWrite bool `gorm:"not null" json:"can_write"`
	CanFull  bool `gorm:"not null" json:"can_full"`

	CanViewCategory bool `gorm:"not null" json:"can_view_category"`
	CanReadData     bool `gorm:"not null" json:"can_read_data"`
	CanManageOwn    bool `gorm:"not null" json:"can_manage_own"`
	CanEditOthers   bool `gorm:"not null" json:"can_edit_others"`
}

// Permission is one row of the permission matrix, unique per (role, menu).
// A missing row means every capability is denied.
type Permission struct {
	RoleID uint `gorm:"primaryKey;autoIncrement:false" json:"role_id"`
	MenuID uint `gorm:"primaryKey;autoIncrement:false;index" json:"menu_id"`

	PermissionBits `gorm:"embedded"`

	// Deleting a role or a menu entry removes its grants.
	Role *Role      `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE" json:"-"`
	Menu *MenuEntry `gorm:"foreignKey:MenuID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the default table name for GORM.
func (Permission) TableName() string {
	return "permissions"
}
