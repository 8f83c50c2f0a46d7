package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
)

// RunRepository implements [models.RunLog] over the sync_runs table.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Record inserts run, assigning an ID when it has none.
func (r *RunRepository) Record(ctx context.Context, run *models.SyncRun) error {
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}

	var errorMessage any
	if run.Error != "" {
		errorMessage = run.Error
	}

	query := `
		INSERT INTO sync_runs (id, source_url, playlist_id, extracted, appended, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.SourceURL,
		run.PlaylistID,
		run.Extracted,
		run.Appended,
		errorMessage,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return unavailable("insert run", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (r *RunRepository) Recent(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", shared.ErrInvalidFlag)
	}

	query := `
		SELECT id, source_url, playlist_id, extracted, appended, error, started_at, finished_at
		FROM sync_runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, unavailable("query runs", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var (
			run          models.SyncRun
			errorMessage sql.NullString
		)
		err := rows.Scan(&run.ID, &run.SourceURL, &run.PlaylistID, &run.Extracted, &run.Appended, &errorMessage, &run.StartedAt, &run.FinishedAt)
		if err != nil {
			return nil, unavailable("scan run", err)
		}
		run.Error = errorMessage.String
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate runs", err)
	}

	return runs, nil
}
