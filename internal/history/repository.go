package history

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/pkg/pagination"
	"github.com/JaimeStill/docassist/pkg/query"
	"github.com/JaimeStill/docassist/pkg/repository"
	"github.com/JaimeStill/docassist/pkg/storage"
)

const insertEntry = `
	INSERT INTO analyses(id, session_id, generation, mode, source_filename, panel, prediction, narrative, report_key, report_size, page_count)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id, session_id, generation, mode, source_filename, panel, prediction, narrative, report_key, report_size, page_count, created_at`

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a history repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "history"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Entry], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Narrative", "SourceFilename").
		OrderByFields(page.Sort)

	filters.Apply(qb)

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	entries, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}

	result := pagination.NewPageResult(entries, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Entry, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	e, err := repository.QueryOne(ctx, r.db, q, args, scanEntry)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &e, nil
}

func (r *repo) Record(ctx context.Context, cmd RecordCommand) (*Entry, error) {
	key, args, err := insertArgs(cmd)
	if err != nil {
		return nil, err
	}

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Report.Data), cmd.Report.ContentType); err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}

	e, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Entry, error) {
		return repository.QueryOne(ctx, tx, insertEntry, args, scanEntry)
	})
	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating report delete failed", "key", key, "error", delErr)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("analysis archived", "id", e.ID, "session", e.SessionID, "mode", e.Mode)
	return &e, nil
}

func (r *repo) Report(ctx context.Context, id uuid.UUID) (*Entry, io.ReadCloser, error) {
	e, err := r.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	body, err := r.storage.Download(ctx, e.ReportKey)
	if err != nil {
		return nil, nil, fmt.Errorf("download report: %w", err)
	}
	return e, body, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	e, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, "DELETE FROM analyses WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if delErr := r.storage.Delete(ctx, e.ReportKey); delErr != nil {
		r.logger.Warn("report delete failed after row delete", "key", e.ReportKey, "error", delErr)
	}

	r.logger.Info("analysis deleted", "id", id)
	return nil
}

// insertArgs validates cmd and returns the report storage key with the
// positional arguments of insertEntry.
func insertArgs(cmd RecordCommand) (string, []any, error) {
	if cmd.Report == nil || len(cmd.Report.Data) == 0 {
		return "", nil, fmt.Errorf("%w: missing report", ErrInvalidRecord)
	}
	if cmd.Narrative == "" {
		return "", nil, fmt.Errorf("%w: missing narrative", ErrInvalidRecord)
	}

	var (
		filename *string
		panelDoc []byte
	)
	switch src := cmd.Source.(type) {
	case acquisition.Document:
		name := src.Filename
		filename = &name
	case acquisition.ManualPanel:
		raw, err := json.Marshal(src.Panel)
		if err != nil {
			return "", nil, fmt.Errorf("encode panel: %w", err)
		}
		panelDoc = raw
	default:
		return "", nil, fmt.Errorf("%w: missing source", ErrInvalidRecord)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", nil, fmt.Errorf("generate id: %w", err)
	}

	key := reportKey(id, cmd.Report.Filename)
	return key, []any{
		id,
		cmd.SessionID,
		int64(cmd.Generation),
		cmd.Source.Mode().String(),
		filename,
		panelDoc,
		cmd.Prediction,
		cmd.Narrative,
		key,
		int64(len(cmd.Report.Data)),
		cmd.Report.Pages,
	}, nil
}

func reportKey(id uuid.UUID, filename string) string {
	name := path.Base(filename)
	if name == "." || name == "/" || name == "" {
		name = "report.pdf"
	}
	return fmt.Sprintf("reports/%s/%s", id, name)
}
