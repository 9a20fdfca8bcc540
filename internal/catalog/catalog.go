// Package catalog holds pure helpers over the two-level menu tree: grouping leaves under
// their category header and checking the loose parent/child linkage.
package catalog

import (
	"sort"

	"github.com/charlesng35/menuguard/internal/models"
)

// Category is a header together with its leaf pages in display order. Header is nil when
// leaves reference a category that has no header entry.
type Category struct {
	Name   string             `json:"name"`
	Header *models.MenuEntry  `json:"header,omitempty"`
	Pages  []models.MenuEntry `json:"pages"`
}

// Sort orders entries by display order, then id.
func Sort(menus []models.MenuEntry) {
	sort.SliceStable(menus, func(i, j int) bool {
		if menus[i].Order != menus[j].Order {
			return menus[i].Order < menus[j].Order
		}
		return menus[i].ID < menus[j].ID
	})
}

// Group arranges entries into categories. A leaf is placed under the header named by its
// ParentID when that header exists, otherwise under the header sharing its category label.
// Categories follow header order; header-less categories come last.
func Group(menus []models.MenuEntry) []Category {
	sorted := append([]models.MenuEntry(nil), menus...)
	Sort(sorted)

	headersByID := make(map[uint]int)
	byName := make(map[string]int)
	var groups []Category

	for _, m := range sorted {
		if m.Level != models.LevelCategory {
			continue
		}
		if _, exists := byName[m.Category]; exists {
			continue
		}
		header := m
		byName[m.Category] = len(groups)
		headersByID[m.ID] = len(groups)
		groups = append(groups, Category{Name: m.Category, Header: &header})
	}

	var orphans []Category
	orphanIdx := make(map[string]int)

	for _, m := range sorted {
		if m.Level != models.LevelPage {
			continue
		}
		if m.ParentID != nil {
			if idx, ok := headersByID[*m.ParentID]; ok {
				groups[idx].Pages = append(groups[idx].Pages, m)
				continue
			}
		}
		if idx, ok := byName[m.Category]; ok {
			groups[idx].Pages = append(groups[idx].Pages, m)
			continue
		}
		idx, ok := orphanIdx[m.Category]
		if !ok {
			idx = len(orphans)
			orphanIdx[m.Category] = idx
			orphans = append(orphans, Category{Name: m.Category})
		}
		orphans[idx].Pages = append(orphans[idx].Pages, m)
	}

	return append(groups, orphans...)
}

// DuplicateURLs returns, sorted, every non-empty URL carried by more than one entry.
func DuplicateURLs(menus []models.MenuEntry) []string {
	seen := make(map[string]int, len(menus))
	for _, m := range menus {
		if m.URL == "" {
			continue
		}
		seen[m.URL]++
	}

	var dups []string
	for url, n := range seen {
		if n > 1 {
			dups = append(dups, url)
		}
	}
	sort.Strings(dups)
	return dups
}
