package catalog

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/charlesng35/menuguard/internal/models"
)

// IssueKind classifies a catalog defect.
type IssueKind string

const (
	IssueInvalidLevel     IssueKind = "invalid_level"
	IssueHeaderWithParent IssueKind = "header_with_parent"
	IssueMissingParent    IssueKind = "missing_parent"
	IssueParentNotHeader  IssueKind = "parent_not_header"
	IssueCategoryMismatch IssueKind = "category_mismatch"
	IssueOrphanPage       IssueKind = "orphan_page"
	IssueDuplicateHeader  IssueKind = "duplicate_header"
	IssueDuplicateURL     IssueKind = "duplicate_url"
)

// Issue describes one defect found by Validate.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	MenuID uint      `json:"menu_id"`
	Detail string    `json:"detail"`
}

func (i *Issue) Error() string {
	return fmt.Sprintf("catalog: menu %d: %s: %s", i.MenuID, i.Kind, i.Detail)
}

// Validate checks the parent/child linkage of the catalog without changing anything.
// Every defect is returned as an *Issue combined with multierr; nil means clean.
// Duplicate URLs are only reported among enabled entries.
func Validate(menus []models.MenuEntry) error {
	byID := make(map[uint]models.MenuEntry, len(menus))
	headers := make(map[string]uint)
	var err error

	sorted := append([]models.MenuEntry(nil), menus...)
	Sort(sorted)

	for _, m := range sorted {
		byID[m.ID] = m
		if m.Level != models.LevelCategory {
			continue
		}
		if first, dup := headers[m.Category]; dup {
			err = multierr.Append(err, &Issue{
				Kind:   IssueDuplicateHeader,
				MenuID: m.ID,
				Detail: fmt.Sprintf("category %q already has header %d", m.Category, first),
			})
			continue
		}
		headers[m.Category] = m.ID
	}

	for _, m := range sorted {
		switch {
		case !m.Level.Valid():
			err = multierr.Append(err, &Issue{
				Kind:   IssueInvalidLevel,
				MenuID: m.ID,
				Detail: fmt.Sprintf("level %d is neither category nor page", m.Level),
			})
		case m.Level == models.LevelCategory:
			if m.ParentID != nil {
				err = multierr.Append(err, &Issue{
					Kind:   IssueHeaderWithParent,
					MenuID: m.ID,
					Detail: fmt.Sprintf("category header points at parent %d", *m.ParentID),
				})
			}
		default:
			err = multierr.Append(err, validatePage(m, byID, headers))
		}
	}

	var enabled []models.MenuEntry
	for _, m := range sorted {
		if m.Enabled {
			enabled = append(enabled, m)
		}
	}
	for _, url := range DuplicateURLs(enabled) {
		for _, m := range enabled {
			if m.URL == url {
				err = multierr.Append(err, &Issue{
					Kind:   IssueDuplicateURL,
					MenuID: m.ID,
					Detail: fmt.Sprintf("url %q is shared by several enabled entries", url),
				})
			}
		}
	}

	return err
}

func validatePage(m models.MenuEntry, byID map[uint]models.MenuEntry, headers map[string]uint) error {
	if m.ParentID == nil {
		if _, ok := headers[m.Category]; !ok {
			return &Issue{
				Kind:   IssueOrphanPage,
				MenuID: m.ID,
				Detail: fmt.Sprintf("no category header named %q", m.Category),
			}
		}
		return nil
	}

	parent, ok := byID[*m.ParentID]
	switch {
	case !ok:
		return &Issue{
			Kind:   IssueMissingParent,
			MenuID: m.ID,
			Detail: fmt.Sprintf("parent %d does not exist", *m.ParentID),
		}
	case parent.Level != models.LevelCategory:
		return &Issue{
			Kind:   IssueParentNotHeader,
			MenuID: m.ID,
			Detail: fmt.Sprintf("parent %d is not a category header", parent.ID),
		}
	case parent.Category != m.Category:
		return &Issue{
			Kind:   IssueCategoryMismatch,
			MenuID: m.ID,
			Detail: fmt.Sprintf("category %q differs from parent category %q", m.Category, parent.Category),
		}
	}
	return nil
}

// Issues unpacks the defects combined in an error returned by Validate.
func Issues(err error) []*Issue {
	var issues []*Issue
	for _, e := range multierr.Errors(err) {
		var issue *Issue
		if errors.As(e, &issue) {
			issues = append(issues, issue)
		}
	}
	return issues
}
