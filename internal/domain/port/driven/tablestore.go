package driven

import (
	"context"

	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
)

// TableStore defines the driven port for persisting flattened tables outside
// the session, e.g. for analysis in other tools.
type TableStore interface {
	// SaveTable replaces the stored copy of the table for key and returns
	// the ID of the export ledger entry.
	SaveTable(ctx context.Context, key model.DatasetKey, table *model.Table) (string, error)

	// ListExports returns the export ledger, most recent first.
	ListExports(ctx context.Context) ([]model.ExportRecord, error)
}
