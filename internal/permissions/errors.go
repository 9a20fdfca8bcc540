package permissions

import "errors"

var (
	// ErrResolutionFailed wraps every store or data failure met while resolving a role.
	// It is never replaced by an empty map.
	ErrResolutionFailed = errors.New("permissions: resolution failed")
	// ErrNotGranted indicates the role holds no grant for the requested menu.
	ErrNotGranted = errors.New("permissions: menu not granted")
	// ErrAmbiguousURL indicates a url lookup hit a url shared by several enabled entries.
	ErrAmbiguousURL = errors.New("permissions: url is shared by several menu entries")
	// ErrMigrationInProgress indicates another run currently holds the migration claim.
	ErrMigrationInProgress = errors.New("permissions: migration already running")
)
