package nats

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/findirfin/ringil/internal/domain/apperr"
	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/domain/ports"
)

// bucket is the slice of a JetStream key-value bucket the export store needs
type bucket interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	Keys(ctx context.Context) ([]string, error)
}

type kvBucket struct {
	kv nats.KeyValue
}

func (b *kvBucket) Put(key string, value []byte) error {
	_, err := b.kv.Put(key, value)
	return err
}

func (b *kvBucket) Get(key string) ([]byte, error) {
	entry, err := b.kv.Get(key)
	if err != nil {
		return nil, err
	}
	return entry.Value(), nil
}

func (b *kvBucket) Delete(key string) error {
	return b.kv.Delete(key)
}

func (b *kvBucket) Keys(ctx context.Context) ([]string, error) {
	return b.kv.Keys(nats.Context(ctx))
}

// ExportStore keeps Markdown snapshots in a key-value bucket, one key per conversation
type ExportStore struct {
	bucket bucket
}

var (
	_ ports.SecondaryStore = (*ExportStore)(nil)
	_ ports.ExportReader   = (*ExportStore)(nil)
)

func newExportStore(b bucket) *ExportStore {
	return &ExportStore{bucket: b}
}

// recordKey is the bucket key for a conversation id
func recordKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Put writes or replaces the snapshot for record.ID
func (s *ExportStore) Put(ctx context.Context, record *entities.ExportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode export %d: %w", record.ID, err)
	}
	if err := s.bucket.Put(recordKey(record.ID), data); err != nil {
		return fmt.Errorf("failed to put export %d: %w", record.ID, err)
	}
	return nil
}

// Delete removes the snapshot for id; a missing key is not an error
func (s *ExportStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.bucket.Delete(recordKey(id)); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete export %d: %w", id, err)
	}
	return nil
}

// Get returns the snapshot for id
func (s *ExportStore) Get(ctx context.Context, id int64) (*entities.ExportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.bucket.Get(recordKey(id))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, apperr.NotFound("export", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export %d: %w", id, err)
	}

	var record entities.ExportRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode export %d: %w", id, err)
	}
	return &record, nil
}

// List returns every snapshot, newest first
func (s *ExportStore) List(ctx context.Context) ([]*entities.ExportRecord, error) {
	keys, err := s.bucket.Keys(ctx)
	if errors.Is(err, nats.ErrNoKeysFound) {
		return []*entities.ExportRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list export keys: %w", err)
	}

	records := make([]*entities.ExportRecord, 0, len(keys))
	for _, key := range keys {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		record, err := s.Get(ctx, id)
		if apperr.IsNotFound(err) {
			// deleted between Keys and Get
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	slices.SortFunc(records, func(a, b *entities.ExportRecord) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return records, nil
}
