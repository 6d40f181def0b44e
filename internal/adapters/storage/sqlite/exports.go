package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/findirfin/ringil/internal/domain/apperr"
	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/internal/pkg/dbutil"
)

// ExportStore is the SQLite secondary store. It shares the adapter's database.
type ExportStore struct {
	adapter *Adapter
}

var (
	_ ports.SecondaryStore = (*ExportStore)(nil)
	_ ports.ExportReader   = (*ExportStore)(nil)
)

// Exports returns the secondary store view of the adapter
func (a *Adapter) Exports() *ExportStore {
	return &ExportStore{adapter: a}
}

// Put inserts or replaces the snapshot for record.ID
func (s *ExportStore) Put(ctx context.Context, record *entities.ExportRecord) error {
	err := s.adapter.wrapper.SaveWithRetry(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO exports (id, filename, title, content, timestamp) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				filename = excluded.filename,
				title = excluded.title,
				content = excluded.content,
				timestamp = excluded.timestamp
		`, record.ID, record.Filename, record.Title, record.Content, record.Timestamp.UTC())
		return err
	}, writeRetries)
	if err != nil {
		return fmt.Errorf("failed to save export %d: %w", record.ID, err)
	}
	return nil
}

// Delete removes the snapshot for id; deleting a missing id is not an error
func (s *ExportStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.adapter.wrapper.ExecQuery(ctx, "DELETE FROM exports WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete export %d: %w", id, err)
	}
	return nil
}

// Get returns the snapshot for id
func (s *ExportStore) Get(ctx context.Context, id int64) (*entities.ExportRecord, error) {
	var rec entities.ExportRecord
	err := s.adapter.wrapper.QueryWithTimeout(ctx, func(ctx context.Context, db dbutil.DB) error {
		return db.QueryRowContext(ctx,
			"SELECT id, filename, title, content, timestamp FROM exports WHERE id = ?", id,
		).Scan(&rec.ID, &rec.Filename, &rec.Title, &rec.Content, &rec.Timestamp)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("export", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export %d: %w", id, err)
	}
	return &rec, nil
}

// List returns all snapshots, newest first
func (s *ExportStore) List(ctx context.Context) ([]*entities.ExportRecord, error) {
	var records []*entities.ExportRecord
	err := s.adapter.wrapper.QueryWithTimeout(ctx, func(ctx context.Context, db dbutil.DB) error {
		rows, err := db.QueryContext(ctx,
			"SELECT id, filename, title, content, timestamp FROM exports ORDER BY timestamp DESC, id DESC")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec := &entities.ExportRecord{}
			if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Title, &rec.Content, &rec.Timestamp); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	return records, nil
}
