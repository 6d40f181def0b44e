// Package export renders conversations as Markdown documents.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/findirfin/ringil/internal/domain/entities"
)

const (
	// TimestampLayout is the en-US locale date-time layout used in the header
	TimestampLayout = "1/2/2006, 3:04:05 PM"

	untitled = "Untitled Chat"
)

// Renderer converts conversations to Markdown
type Renderer struct {
	location *time.Location
}

// NewRenderer creates a renderer that prints timestamps in loc (local time when nil)
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{location: loc}
}

// ConvertToMarkdown renders a conversation; modelLabel is printed verbatim
func (r *Renderer) ConvertToMarkdown(conv *entities.Conversation, modelLabel string) string {
	title := strings.TrimSpace(conv.Title)
	if title == "" {
		title = untitled
	}

	lines := make([]string, 0, 4+len(conv.Messages))
	lines = append(lines,
		"# "+title,
		"\nStarted: "+conv.Timestamp.In(r.location).Format(TimestampLayout),
		"Model: "+modelLabel,
		"\n## Conversation\n",
	)

	for _, msg := range conv.Messages {
		switch msg.Role {
		case entities.RoleSystem:
			lines = append(lines, fmt.Sprintf("\n---\n_%s_\n---\n", msg.Text))
		case entities.RoleUser:
			lines = append(lines, fmt.Sprintf("\n### **User**\n%s\n", msg.Text))
		default:
			lines = append(lines, fmt.Sprintf("\n### **Assistant**\n%s\n", msg.Text))
		}
	}

	return strings.Join(lines, "\n")
}

// DownloadFilename returns chat-<slug>-<id>.md for a conversation
func DownloadFilename(conv *entities.Conversation) string {
	return fmt.Sprintf("chat-%s-%d.md", Slug(conv.Title), conv.ID)
}

// Slug lower-cases s and replaces every rune outside [a-z0-9] with '-'
func Slug(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}
