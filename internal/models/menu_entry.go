package models

import "time"

// MenuLevel is the depth of a menu entry. The tree has exactly two levels.
type MenuLevel int

const (
	// LevelCategory marks a category header.
	LevelCategory MenuLevel = 0
	// LevelPage marks a leaf page backed by data.
	LevelPage MenuLevel = 1
)

// Valid reports whether the level is one of the two supported depths.
func (l MenuLevel) Valid() bool {
	return l == LevelCategory || l == LevelPage
}

// MenuEntry is one node of the navigation tree.
//
// Leaf pages are grouped under a header by their category label. ParentID makes that
// link explicit; when it is nil the category string is the only linkage.
type MenuEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"`
	Category  string    `gorm:"size:128;not null;index" json:"category"`
	Page      string    `gorm:"size:128" json:"page"`
	URL       string    `gorm:"column:url;size:255;index" json:"url"`
	Level     MenuLevel `gorm:"not null" json:"level"`
	Enabled   bool      `gorm:"not null;index" json:"enabled"`
	Order     int       `gorm:"column:sort_order;not null" json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the default table name for GORM.
func (MenuEntry) TableName() string {
	return "menu_entries"
}

// IsCategory reports whether the entry is a category header.
func (m MenuEntry) IsCategory() bool {
	return m.Level == LevelCategory
}
