package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findirfin/ringil/internal/adapters/storage/memory"
	"github.com/findirfin/ringil/internal/domain/apperr"
	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/domain/export"
	"github.com/findirfin/ringil/internal/domain/metrics"
	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/internal/pkg/logutil"
)

type storeFixture struct {
	store     *ConversationStore
	primary   *memory.PrimaryStore
	secondary *memory.SecondaryStore
	publisher *recordingPublisher
	port      *MockCompletionPort
	registry  *ModelRegistry
	metrics   *metrics.Collector
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()

	f := &storeFixture{
		primary:   memory.NewPrimaryStore(),
		secondary: memory.NewSecondaryStore(),
		publisher: &recordingPublisher{},
		port:      &MockCompletionPort{reply: "Hello! How can I help?"},
		metrics:   metrics.NewCollector(),
	}

	seed := entities.DefaultModelConfig()
	seed.APIKey = "sk-test"
	f.registry = NewModelRegistry(f.primary, seed, logutil.Discard())
	require.NoError(t, f.registry.Load(context.Background()))

	f.store = f.newStore(t)
	return f
}

func (f *storeFixture) newStore(t *testing.T) *ConversationStore {
	t.Helper()
	s := NewConversationStore(f.primary, f.registry, newTestDispatcher(f.port, f.metrics),
		WithSecondaryStore(f.secondary),
		WithEventPublisher(f.publisher),
		WithStoreLogger(logutil.Discard()),
		WithStoreMetrics(f.metrics),
		WithRenderer(export.NewRenderer(time.UTC)),
	)
	require.NoError(t, s.Load(context.Background()))
	t.Cleanup(func() { _ = s.Flush(context.Background()) })
	return s
}

func (f *storeFixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.store.Flush(ctx))
}

func ids(conversations []*entities.Conversation) []int64 {
	out := make([]int64, len(conversations))
	for i, c := range conversations {
		out[i] = c.ID
	}
	return out
}

func TestConversationStore_CreateConversation(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	conv, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)

	assert.Equal(t, entities.DefaultTitle, conv.Title)
	assert.Empty(t, conv.Messages)
	assert.Equal(t, conv.Timestamp, conv.LastEdited)

	active, ok := f.store.Active()
	require.True(t, ok)
	assert.Equal(t, conv.ID, active.ID)

	second, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)
	assert.Greater(t, second.ID, conv.ID)
	assert.Equal(t, []int64{second.ID, conv.ID}, ids(f.store.List()))
}

func TestConversationStore_StartNewChat(t *testing.T) {
	f := newStoreFixture(t)

	conv, err := f.store.StartNewChat(context.Background())
	require.NoError(t, err)

	require.Len(t, conv.Messages, 1)
	assert.Equal(t, entities.RoleSystem, conv.Messages[0].Role)
	assert.Equal(t, "New chat started", conv.Messages[0].Text)
}

func TestConversationStore_AppendMessage(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	conv, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)

	msg, err := f.store.AppendMessage(ctx, conv.ID, "hello", entities.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)

	stored, err := f.store.Get(conv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 1)
	assert.Equal(t, msg.Timestamp, stored.LastEdited)

	_, err = f.store.AppendMessage(ctx, 42, "hello", entities.RoleUser)
	assert.True(t, apperr.IsNotFound(err))

	_, err = f.store.AppendMessage(ctx, conv.ID, "hello", entities.MessageRole("tool"))
	assert.Error(t, err)
}

func TestConversationStore_AppendRequiresActive(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	first, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)
	_, err = f.store.CreateConversation(ctx)
	require.NoError(t, err)

	_, err = f.store.AppendMessage(ctx, first.ID, "late", entities.RoleUser)
	assert.True(t, apperr.IsNotFound(err))
}

func TestConversationStore_SortedAfterEveryAppend(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	var created []int64
	for range 3 {
		conv, err := f.store.CreateConversation(ctx)
		require.NoError(t, err)
		created = append(created, conv.ID)
	}

	// touch the oldest; it moves to the head
	_, err := f.store.LoadConversation(ctx, created[0])
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = f.store.AppendMessage(ctx, created[0], "bump", entities.RoleUser)
	require.NoError(t, err)

	list := f.store.List()
	assert.Equal(t, []int64{created[0], created[2], created[1]}, ids(list))
	assert.True(t, slices.IsSortedFunc(list, func(a, b *entities.Conversation) int {
		return b.LastEdited.Compare(a.LastEdited)
	}))
}

func TestSortConversations_TiesByID(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	list := []*entities.Conversation{
		{ID: 1, LastEdited: at},
		{ID: 3, LastEdited: at},
		{ID: 2, LastEdited: at.Add(time.Second)},
	}

	sortConversations(list)

	assert.Equal(t, []int64{2, 3, 1}, ids(list))
}

func TestConversationStore_TitleDerivation(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	long := strings.Repeat("a", 35)
	_, err := f.store.Send(ctx, long)
	require.NoError(t, err)

	active, ok := f.store.Active()
	require.True(t, ok)
	// system note + user message make two; the title comes from the user text
	assert.Equal(t, strings.Repeat("a", 30)+"...", active.Title)
	assert.Len(t, active.Messages, 3)
}

func TestConversationStore_RenameWinsOverDerivation(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	conv, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)
	_, err = f.store.AppendMessage(ctx, conv.ID, "first question", entities.RoleUser)
	require.NoError(t, err)

	require.NoError(t, f.store.RenameConversation(ctx, conv.ID, "  My Title  "))

	_, err = f.store.AppendMessage(ctx, conv.ID, "answer", entities.RoleAssistant)
	require.NoError(t, err)

	stored, err := f.store.Get(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "My Title", stored.Title)
	assert.True(t, stored.TitleLocked)
}

func TestConversationStore_RenameConversation(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	conv, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)
	writes := f.primary.Writes()

	require.NoError(t, f.store.RenameConversation(ctx, conv.ID, "   "))
	require.NoError(t, f.store.RenameConversation(ctx, conv.ID, entities.DefaultTitle))
	assert.Equal(t, writes, f.primary.Writes(), "no-op renames do not persist")

	err = f.store.RenameConversation(ctx, 7, "Other")
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, f.store.RenameConversation(ctx, conv.ID, "Renamed"))
	assert.Equal(t, writes+1, f.primary.Writes())
}

func TestConversationStore_Search(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	titles := []string{"Go generics", "Rust lifetimes", "GOPATH woes"}
	for _, title := range titles {
		conv, err := f.store.CreateConversation(ctx)
		require.NoError(t, err)
		require.NoError(t, f.store.RenameConversation(ctx, conv.ID, title))
	}

	tests := []struct {
		term string
		want []string
	}{
		{"go", []string{"GOPATH woes", "Go generics"}},
		{"LIFE", []string{"Rust lifetimes"}},
		{"python", nil},
		{"", []string{"GOPATH woes", "Rust lifetimes", "Go generics"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("term_%q", tt.term), func(t *testing.T) {
			var got []string
			for conv := range f.store.Search(tt.term) {
				got = append(got, conv.Title)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConversationStore_SearchIsRestartable(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	seq := f.store.Search("")
	assert.Empty(t, slices.Collect(seq))

	_, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)
	assert.Len(t, slices.Collect(seq), 1, "a new range sees the current list")

	_, err = f.store.CreateConversation(ctx)
	require.NoError(t, err)
	for range seq {
		break
	}
	assert.Len(t, slices.Collect(seq), 2)
}

func TestConversationStore_Page(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	for range 7 {
		_, err := f.store.CreateConversation(ctx)
		require.NoError(t, err)
	}
	all := ids(f.store.List())

	assert.Equal(t, all[:5], ids(f.store.Page(0, 0)), "default page size")
	assert.Equal(t, all[5:], ids(f.store.Page(5, 0)))
	assert.Equal(t, all[2:4], ids(f.store.Page(2, 2)))
	assert.Empty(t, f.store.Page(10, 0))

	f.store.SetShowAll(true)
	assert.True(t, f.store.ShowAll())
	assert.Equal(t, all, ids(f.store.Page(0, 0)))
	assert.Equal(t, all, ids(f.store.Page(0, 2)))

	f.store.SetShowAll(false)
	assert.Len(t, f.store.Page(0, 0), 5)
}

func TestConversationStore_DeleteThenLoad(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	conv, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)
	f.flush(t)
	require.Equal(t, 1, f.secondary.Len())

	require.NoError(t, f.store.DeleteConversation(ctx, conv.ID))
	f.flush(t)

	_, ok := f.store.Active()
	assert.False(t, ok, "deleting the active conversation clears the slot")

	_, err = f.store.LoadConversation(ctx, conv.ID)
	assert.True(t, apperr.IsNotFound(err))

	err = f.store.DeleteConversation(ctx, conv.ID)
	assert.True(t, apperr.IsNotFound(err))

	assert.Zero(t, f.secondary.Len())
	assert.Contains(t, f.publisher.Subjects(), fmt.Sprintf("conversation.%d.deleted", conv.ID))
}

func TestConversationStore_LoadConversation(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	first, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)
	_, err = f.store.CreateConversation(ctx)
	require.NoError(t, err)

	loaded, err := f.store.LoadConversation(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, loaded.ID)

	active, ok := f.store.Active()
	require.True(t, ok)
	assert.Equal(t, first.ID, active.ID)

	// copies are detached from the session state
	loaded.Title = "mutated"
	again, err := f.store.LoadConversation(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultTitle, again.Title)
}

func TestConversationStore_PrimaryRoundTrip(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	_, err := f.store.Send(ctx, "Hi there")
	require.NoError(t, err)
	conv, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)
	require.NoError(t, f.store.RenameConversation(ctx, conv.ID, "Pinned"))

	before := f.store.List()

	reloaded := f.newStore(t)
	after := reloaded.List()

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Title, after[i].Title)
		assert.Equal(t, before[i].TitleLocked, after[i].TitleLocked)
		assert.True(t, before[i].Timestamp.Equal(after[i].Timestamp), "conversation %d timestamp", before[i].ID)
		assert.True(t, before[i].LastEdited.Equal(after[i].LastEdited))
		require.Len(t, after[i].Messages, len(before[i].Messages))
		for j := range before[i].Messages {
			assert.Equal(t, before[i].Messages[j].Text, after[i].Messages[j].Text)
			assert.Equal(t, before[i].Messages[j].Role, after[i].Messages[j].Role)
			assert.True(t, before[i].Messages[j].Timestamp.Equal(after[i].Messages[j].Timestamp), "message %d timestamp", j)
		}
		assert.Equal(t, normalized(before[i]), normalized(after[i]))
	}

	_, ok := reloaded.Active()
	assert.False(t, ok)

	next, err := reloaded.CreateConversation(ctx)
	require.NoError(t, err)
	assert.Greater(t, next.ID, before[0].ID)
}

func TestConversationStore_LoadDropsDuplicates(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	at := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	blob := fmt.Sprintf(`[
		{"id":1,"title":"one","messages":[],"timestamp":%[1]q,"last_edited":%[1]q},
		{"id":1,"title":"dup","messages":[],"timestamp":%[1]q,"last_edited":%[1]q},
		{"id":2,"title":"two","timestamp":%[1]q,"last_edited":%[1]q}
	]`, at.Format(time.RFC3339Nano))
	require.NoError(t, f.primary.Write(ctx, ports.KeyConversations, []byte(blob)))

	require.NoError(t, f.store.Load(ctx))

	list := f.store.List()
	assert.Equal(t, []int64{2, 1}, ids(list))
	assert.Equal(t, "one", list[1].Title)
	assert.NotNil(t, list[0].Messages)
}

func TestConversationStore_Send(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	reply, err := f.store.Send(ctx, "  Hi there  ")
	require.NoError(t, err)
	assert.Equal(t, entities.RoleAssistant, reply.Role)
	assert.Equal(t, "Hello! How can I help?", reply.Text)

	active, ok := f.store.Active()
	require.True(t, ok)
	require.Len(t, active.Messages, 3)
	assert.Equal(t, "New chat started", active.Messages[0].Text)
	assert.Equal(t, "Hi there", active.Messages[1].Text)
	assert.Equal(t, "Hi there", active.Title)

	req := f.port.LastRequest()
	require.NotNil(t, req)
	require.Len(t, req.Messages, 2, "system annotations stay local")
	assert.Equal(t, "Hi there", req.Messages[1].Content)

	f.flush(t)
	record, err := f.secondary.Get(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("chat-%d.md", active.ID), record.Filename)
	assert.Contains(t, record.Content, "### **Assistant**\nHello! How can I help?")

	snapshot := f.metrics.Snapshot()
	assert.Equal(t, int64(1), snapshot.MessagesSent)
	assert.Equal(t, int64(1), snapshot.RepliesReceived)
}

func TestConversationStore_SendEmpty(t *testing.T) {
	f := newStoreFixture(t)

	_, err := f.store.Send(context.Background(), " \n\t")
	assert.ErrorIs(t, err, apperr.ErrEmptyMessage)
	assert.Zero(t, f.port.Calls())
	assert.Empty(t, f.store.List())
}

func TestConversationStore_SendWithoutAPIKey(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	cfg := entities.DefaultModelConfig()
	_, err := f.registry.Upsert(ctx, cfg)
	require.NoError(t, err)

	_, err = f.store.Send(ctx, "hello")
	assert.True(t, apperr.IsConfig(err))
	assert.Zero(t, f.port.Calls())
	assert.Empty(t, f.store.List(), "nothing is appended before the model is usable")
}

func TestConversationStore_SendProviderError(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.port.err = &apperr.ProviderError{StatusCode: 401, Body: "invalid key"}

	note, err := f.store.Send(ctx, "hello")

	assert.True(t, apperr.IsProvider(err))
	require.NotNil(t, note)
	assert.Equal(t, entities.RoleSystem, note.Role)
	assert.Equal(t, "Error: API error: 401 Unauthorized - invalid key", note.Text)

	active, ok := f.store.Active()
	require.True(t, ok)
	require.Len(t, active.Messages, 3)
	assert.Equal(t, note.Text, active.Messages[2].Text)
	assert.False(t, f.store.IsSending(), "a failed send re-enables sending")
}

func TestConversationStore_SendSingleFlight(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	release := make(chan struct{})
	f.port.block = release
	f.port.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.store.Send(ctx, "first")
		done <- err
	}()

	select {
	case <-f.port.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first send never reached the provider")
	}

	assert.True(t, f.store.IsSending())
	_, err := f.store.Send(ctx, "second")
	assert.ErrorIs(t, err, apperr.ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, f.store.IsSending())
	assert.Equal(t, 1, f.port.Calls())
}

func TestConversationStore_SendTo(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	first, err := f.store.StartNewChat(ctx)
	require.NoError(t, err)
	second, err := f.store.StartNewChat(ctx)
	require.NoError(t, err)

	_, err = f.store.SendTo(ctx, 42, "hello")
	assert.True(t, apperr.IsNotFound(err))
	active, _ := f.store.Active()
	assert.Equal(t, second.ID, active.ID)

	reply, err := f.store.SendTo(ctx, first.ID, "back to the first")
	require.NoError(t, err)
	assert.Equal(t, entities.RoleAssistant, reply.Role)

	active, ok := f.store.Active()
	require.True(t, ok)
	assert.Equal(t, first.ID, active.ID)
	assert.Len(t, active.Messages, 3)
}

func TestConversationStore_SendToWhileBusyKeepsActive(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	other, err := f.store.StartNewChat(ctx)
	require.NoError(t, err)
	current, err := f.store.StartNewChat(ctx)
	require.NoError(t, err)

	release := make(chan struct{})
	f.port.block = release
	f.port.entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.store.Send(ctx, "first")
		done <- err
	}()

	select {
	case <-f.port.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first send never reached the provider")
	}

	_, err = f.store.SendTo(ctx, other.ID, "second")
	assert.ErrorIs(t, err, apperr.ErrBusy)

	active, ok := f.store.Active()
	require.True(t, ok)
	assert.Equal(t, current.ID, active.ID, "a rejected send must not switch conversations")

	close(release)
	require.NoError(t, <-done)
}

func TestConversationStore_SecondaryFailureIsSwallowed(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.secondary.FailWith(errors.New("bucket unavailable"))

	_, err := f.store.Send(ctx, "hello")
	require.NoError(t, err)
	f.flush(t)

	assert.Positive(t, f.metrics.Snapshot().SecondaryFailures)
	assert.Len(t, f.store.List(), 1)
}

func TestConversationStore_PrimaryFailureKeepsMemoryState(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	conv, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)
	f.primary.FailWith(errors.New("disk full"))

	_, err = f.store.AppendMessage(ctx, conv.ID, "hello", entities.RoleUser)
	assert.ErrorContains(t, err, "failed to persist conversations")

	stored, err := f.store.Get(conv.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 1)
}

func TestConversationStore_SelectModel(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	grok := validModel("Grok")
	grok, err := f.registry.Upsert(ctx, grok)
	require.NoError(t, err)

	_, err = f.store.StartNewChat(ctx)
	require.NoError(t, err)

	cfg, err := f.store.SelectModel(ctx, grok.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grok", cfg.Name)

	active, ok := f.store.Active()
	require.True(t, ok)
	assert.Equal(t, "Model switched to Grok", active.Messages[len(active.Messages)-1].Text)

	_, err = f.store.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "grok-2-latest", f.port.LastRequest().Model)

	_, err = f.store.SelectModel(ctx, "unknown")
	assert.True(t, apperr.IsNotFound(err))

	disabled := validModel("Off")
	disabled.Enabled = false
	disabled, err = f.registry.Upsert(ctx, disabled)
	require.NoError(t, err)
	_, err = f.store.SelectModel(ctx, disabled.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestConversationStore_AddSystemMessage(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.AddSystemMessage(ctx, "ignored"))
	assert.Empty(t, f.store.List())

	conv, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)
	require.NoError(t, f.store.AddSystemMessage(ctx, "note"))

	stored, err := f.store.Get(conv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 1)
	assert.Equal(t, entities.RoleSystem, stored.Messages[0].Role)
}

func TestConversationStore_Export(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	_, err := f.store.Send(ctx, "Hi there")
	require.NoError(t, err)
	active, _ := f.store.Active()

	markdown, filename, err := f.store.Export(active.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("chat-hi-there-%d.md", active.ID), filename)
	assert.True(t, strings.HasPrefix(markdown, "# Hi there\n\nStarted: "))
	assert.Contains(t, markdown, "Model: GPT-4")
	assert.Contains(t, markdown, "\n---\n_New chat started_\n---\n")

	_, _, err = f.store.Export(1)
	assert.True(t, apperr.IsNotFound(err))
}

func TestConversationStore_PublishesUpdates(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	conv, err := f.store.CreateConversation(ctx)
	require.NoError(t, err)
	f.flush(t)

	assert.Equal(t, []string{fmt.Sprintf("conversation.%d.updated", conv.ID)}, f.publisher.Subjects())

	f.publisher.mu.Lock()
	event := f.publisher.events[0]
	f.publisher.mu.Unlock()
	assert.Equal(t, ports.EventConversationUpdated, event.Type)
	assert.Equal(t, conv.ID, event.ConversationID)
	assert.Equal(t, entities.DefaultTitle, event.Title)
}

// normalized drops the monotonic reading and zone so reloaded values compare equal
func normalized(conv *entities.Conversation) *entities.Conversation {
	cp := conv.Clone()
	cp.Timestamp = cp.Timestamp.UTC().Round(0)
	cp.LastEdited = cp.LastEdited.UTC().Round(0)
	for i := range cp.Messages {
		cp.Messages[i].Timestamp = cp.Messages[i].Timestamp.UTC().Round(0)
	}
	return cp
}
