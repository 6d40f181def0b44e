package ports

import (
	"context"

	"github.com/findirfin/ringil/internal/domain/entities"
)

// Keys under which the primary store keeps its blobs
const (
	KeyConversations = "conversations"
	KeyModels        = "models"
)

// PrimaryStore is the synchronous key-value store holding whole serialized lists.
// Writes replace the stored blob for the key.
type PrimaryStore interface {
	Write(ctx context.Context, key string, blob []byte) error

	// Read returns found=false when the key has never been written
	Read(ctx context.Context, key string) (blob []byte, found bool, err error)
}

// SecondaryStore keeps per-conversation Markdown snapshots for backup and export
type SecondaryStore interface {
	Put(ctx context.Context, record *entities.ExportRecord) error
	Delete(ctx context.Context, id int64) error
}

// ExportReader is implemented by secondary stores that can hand snapshots back
type ExportReader interface {
	Get(ctx context.Context, id int64) (*entities.ExportRecord, error)
	List(ctx context.Context) ([]*entities.ExportRecord, error)
}
