package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/internal/pkg/dbutil"
)

const writeRetries = 3

var _ ports.PrimaryStore = (*Adapter)(nil)

// Write replaces the blob stored under key
func (a *Adapter) Write(ctx context.Context, key string, blob []byte) error {
	err := a.wrapper.SaveWithRetry(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
		`, key, blob)
		return err
	}, writeRetries)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Read returns the blob stored under key
func (a *Adapter) Read(ctx context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := a.wrapper.QueryWithTimeout(ctx, func(ctx context.Context, db dbutil.DB) error {
		return db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&blob)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return blob, true, nil
}
