package history

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/JaimeStill/docassist/pkg/pagination"
)

// System defines the public contract for the analysis archive.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Entry], error)

	Find(ctx context.Context, id uuid.UUID) (*Entry, error)
	// Record uploads the report and inserts the entry. The upload is removed
	// again if the insert fails.
	Record(ctx context.Context, cmd RecordCommand) (*Entry, error)
	// Report opens the archived PDF for an entry. The caller must close it.
	Report(ctx context.Context, id uuid.UUID) (*Entry, io.ReadCloser, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
