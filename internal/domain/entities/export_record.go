package entities

import (
	"fmt"
	"time"
)

// ExportRecord is the Markdown snapshot kept in the secondary store
type ExportRecord struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExportRecord builds the snapshot record for a conversation
func NewExportRecord(conv *Conversation, content string) *ExportRecord {
	return &ExportRecord{
		ID:        conv.ID,
		Filename:  fmt.Sprintf("chat-%d.md", conv.ID),
		Content:   content,
		Title:     conv.Title,
		Timestamp: time.Now(),
	}
}
