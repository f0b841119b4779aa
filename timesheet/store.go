package timesheet

import "context"

// =============================================================================
// STORES - Persistence consumed by the core
// =============================================================================

// EntryStore persists time entries.
type EntryStore interface {
	// SaveEntry inserts or replaces an entry by ID.
	SaveEntry(ctx context.Context, e Entry) error

	// GetEntry returns ErrEntryNotFound when no entry has the ID.
	GetEntry(ctx context.Context, id EntryID) (Entry, error)

	// FindEntries returns entries matching the filter in no particular order.
	FindEntries(ctx context.Context, f EntryFilter) ([]Entry, error)
}

// ProjectStore persists projects.
type ProjectStore interface {
	SaveProject(ctx context.Context, p Project) error

	// GetProject returns ErrProjectNotFound when no project has the ID.
	GetProject(ctx context.Context, id ProjectID) (Project, error)
}

// Store is the combination most callers need.
type Store interface {
	EntryStore
	ProjectStore
}
