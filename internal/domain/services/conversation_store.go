package services

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/findirfin/ringil/internal/domain/apperr"
	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/domain/export"
	"github.com/findirfin/ringil/internal/domain/metrics"
	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/internal/pkg/constants"
	"github.com/findirfin/ringil/internal/pkg/logutil"
)

// ConversationStore owns the session state: the conversation list, the active
// conversation, the active model and the paging toggle. Every mutation is
// written to the primary store before the call returns; secondary snapshots and
// change events follow in the background.
type ConversationStore struct {
	primary    ports.PrimaryStore
	secondary  ports.SecondaryStore
	publisher  ports.EventPublisher
	models     *ModelRegistry
	dispatcher *CompletionDispatcher
	renderer   *export.Renderer
	logger     *logutil.Logger
	metrics    *metrics.Collector
	pageSize   int
	bgTimeout  time.Duration

	mu            sync.Mutex
	conversations []*entities.Conversation
	activeID      int64
	activeModelID string
	showAll       bool
	sending       bool

	background sync.WaitGroup
}

// StoreOption configures a ConversationStore
type StoreOption func(*ConversationStore)

// WithSecondaryStore sets where Markdown snapshots are kept
func WithSecondaryStore(secondary ports.SecondaryStore) StoreOption {
	return func(s *ConversationStore) { s.secondary = secondary }
}

// WithEventPublisher sets where change events are published
func WithEventPublisher(publisher ports.EventPublisher) StoreOption {
	return func(s *ConversationStore) { s.publisher = publisher }
}

// WithStoreLogger sets the logger
func WithStoreLogger(logger *logutil.Logger) StoreOption {
	return func(s *ConversationStore) { s.logger = logger }
}

// WithStoreMetrics sets the metrics collector
func WithStoreMetrics(m *metrics.Collector) StoreOption {
	return func(s *ConversationStore) { s.metrics = m }
}

// WithRenderer sets the Markdown renderer used for snapshots and exports
func WithRenderer(r *export.Renderer) StoreOption {
	return func(s *ConversationStore) { s.renderer = r }
}

// WithPageSize sets the collapsed history length
func WithPageSize(n int) StoreOption {
	return func(s *ConversationStore) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithBackgroundTimeout bounds each secondary write and event publication
func WithBackgroundTimeout(d time.Duration) StoreOption {
	return func(s *ConversationStore) {
		if d > 0 {
			s.bgTimeout = d
		}
	}
}

// NewConversationStore creates a store; call Load before use
func NewConversationStore(primary ports.PrimaryStore, models *ModelRegistry, dispatcher *CompletionDispatcher, opts ...StoreOption) *ConversationStore {
	s := &ConversationStore{
		primary:       primary,
		models:        models,
		dispatcher:    dispatcher,
		renderer:      export.NewRenderer(nil),
		logger:        logutil.NewDefaultLogger(),
		pageSize:      constants.DefaultPageSize,
		bgTimeout:     constants.SecondaryStoreTimeout,
		conversations: make([]*entities.Conversation, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory list with the persisted one
func (s *ConversationStore) Load(ctx context.Context) error {
	blob, found, err := s.primary.Read(ctx, ports.KeyConversations)
	if err != nil {
		return fmt.Errorf("failed to read conversations: %w", err)
	}

	var loaded []*entities.Conversation
	if found && len(blob) > 0 {
		if err := json.Unmarshal(blob, &loaded); err != nil {
			return fmt.Errorf("failed to decode conversations: %w", err)
		}
	}

	seen := make(map[int64]bool, len(loaded))
	conversations := make([]*entities.Conversation, 0, len(loaded))
	for _, conv := range loaded {
		if conv == nil || seen[conv.ID] {
			continue
		}
		seen[conv.ID] = true
		if conv.Messages == nil {
			conv.Messages = make([]entities.Message, 0)
		}
		entities.ObserveID(conv.ID)
		conversations = append(conversations, conv)
	}
	sortConversations(conversations)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = conversations
	s.activeID = 0

	s.logger.Info("Loaded conversations", logutil.Fields{
		"count":   len(conversations),
		"dropped": len(loaded) - len(conversations),
	})
	return nil
}

// CreateConversation starts an empty conversation and makes it active
func (s *ConversationStore) CreateConversation(ctx context.Context) (*entities.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.createLocked()
	if err := s.commitLocked(ctx, conv); err != nil {
		return nil, err
	}
	return conv.Clone(), nil
}

// StartNewChat creates a conversation annotated with the new-chat note
func (s *ConversationStore) StartNewChat(ctx context.Context) (*entities.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.createLocked()
	s.appendLocked(conv, entities.RoleSystem, constants.NoteNewChat)
	if err := s.commitLocked(ctx, conv); err != nil {
		return nil, err
	}
	return conv.Clone(), nil
}

// AppendMessage adds a message to the active conversation id
func (s *ConversationStore) AppendMessage(ctx context.Context, id int64, text string, role entities.MessageRole) (*entities.Message, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid message role %q", role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(id)
	if conv == nil || id != s.activeID {
		return nil, apperr.NotFound("conversation", id)
	}

	msg := s.appendLocked(conv, role, text)
	if err := s.commitLocked(ctx, conv); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AddSystemMessage annotates the active conversation; it does nothing when none is active
func (s *ConversationStore) AddSystemMessage(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(s.activeID)
	if conv == nil {
		return nil
	}
	s.appendLocked(conv, entities.RoleSystem, text)
	return s.commitLocked(ctx, conv)
}

// RenameConversation sets an explicit title, which disables auto-titling
func (s *ConversationStore) RenameConversation(ctx context.Context, id int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(id)
	if conv == nil {
		return apperr.NotFound("conversation", id)
	}
	if !conv.Rename(title) {
		return nil
	}

	s.logger.Debug("Renamed conversation", logutil.Fields{"conversation_id": id})
	return s.commitLocked(ctx, conv)
}

// DeleteConversation removes a conversation; the secondary delete is best effort
func (s *ConversationStore) DeleteConversation(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return apperr.NotFound("conversation", id)
	}

	s.conversations = slices.Delete(s.conversations, i, i+1)
	if s.activeID == id {
		s.activeID = 0
	}

	if err := s.persistLocked(ctx); err != nil {
		return err
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		bgCtx, cancel := s.backgroundContext(ctx)
		defer cancel()

		if s.secondary != nil {
			if err := s.secondary.Delete(bgCtx, id); err != nil {
				s.secondaryFailed("delete", id, err)
			}
		}
		s.publish(bgCtx, fmt.Sprintf(ports.SubjectConversationDeleted, id), ports.ChangeEvent{
			Type:           ports.EventConversationDeleted,
			ConversationID: id,
			Timestamp:      time.Now(),
		})
	}()

	s.logger.Info("Deleted conversation", logutil.Fields{"conversation_id": id})
	return nil
}

// LoadConversation makes id the active conversation and returns a copy of it
func (s *ConversationStore) LoadConversation(_ context.Context, id int64) (*entities.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(id)
	if conv == nil {
		return nil, apperr.NotFound("conversation", id)
	}
	s.activeID = id
	return conv.Clone(), nil
}

// Active returns a copy of the active conversation
func (s *ConversationStore) Active() (*entities.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(s.activeID)
	if conv == nil {
		return nil, false
	}
	return conv.Clone(), true
}

// Get returns a copy of a stored conversation without changing the active one
func (s *ConversationStore) Get(id int64) (*entities.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(id)
	if conv == nil {
		return nil, apperr.NotFound("conversation", id)
	}
	return conv.Clone(), nil
}

// List returns copies of every conversation, most recently edited first
func (s *ConversationStore) List() []*entities.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entities.Conversation, len(s.conversations))
	for i, conv := range s.conversations {
		out[i] = conv.Clone()
	}
	return out
}

// Search yields copies of conversations whose title contains term, ignoring
// case. Each range walks the list as it is at that moment.
func (s *ConversationStore) Search(term string) iter.Seq[*entities.Conversation] {
	needle := strings.ToLower(term)
	return func(yield func(*entities.Conversation) bool) {
		s.mu.Lock()
		snapshot := slices.Clone(s.conversations)
		s.mu.Unlock()

		for _, conv := range snapshot {
			s.mu.Lock()
			match := strings.Contains(strings.ToLower(conv.Title), needle)
			var cp *entities.Conversation
			if match {
				cp = conv.Clone()
			}
			s.mu.Unlock()

			if match && !yield(cp) {
				return
			}
		}
	}
}

// Page returns a window of the sorted list
func (s *ConversationStore) Page(offset, limit int) []*entities.Conversation {
	return s.Window(s.List(), offset, limit)
}

// Window applies the paging rules to items: limit falls back to the page size
// when not positive and is ignored entirely while show-all is on.
func (s *ConversationStore) Window(items []*entities.Conversation, offset, limit int) []*entities.Conversation {
	s.mu.Lock()
	showAll := s.showAll
	s.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []*entities.Conversation{}
	}
	items = items[offset:]

	if showAll {
		return items
	}
	if limit <= 0 {
		limit = s.pageSize
	}
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

// SetShowAll toggles whether Page ignores its limit
func (s *ConversationStore) SetShowAll(showAll bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showAll = showAll
}

// ShowAll reports the current paging toggle
func (s *ConversationStore) ShowAll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showAll
}

// ActiveModel returns the model used for the next send: the selected one, or
// the first enabled configuration when nothing was selected.
func (s *ConversationStore) ActiveModel() (*entities.ModelConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeModelLocked()
}

// SelectModel switches the active model and notes the change in the active conversation
func (s *ConversationStore) SelectModel(ctx context.Context, modelID string) (*entities.ModelConfig, error) {
	cfg, err := s.models.GetEnabled(modelID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeModelID = cfg.ID
	s.logger.Info("Switched model", logutil.Fields{"model_config": cfg.ID, "name": cfg.Name})

	conv := s.findLocked(s.activeID)
	if conv == nil {
		return cfg, nil
	}
	s.appendLocked(conv, entities.RoleSystem, fmt.Sprintf(constants.NoteModelSwitchedFmt, cfg.Name))
	if err := s.commitLocked(ctx, conv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Send appends text as a user message to the active conversation (starting a
// new chat when none is active), asks the active model for a reply and appends
// it. Only one send may be outstanding; a concurrent call gets ErrBusy. When
// the provider fails, an error note is appended and returned with the error.
func (s *ConversationStore) Send(ctx context.Context, text string) (*entities.Message, error) {
	return s.send(ctx, 0, text)
}

// SendTo is Send aimed at conversation id. The conversation becomes active
// only once the send is accepted, so a rejected call leaves the session as it was.
func (s *ConversationStore) SendTo(ctx context.Context, id int64, text string) (*entities.Message, error) {
	if id <= 0 {
		return nil, apperr.NotFound("conversation", id)
	}
	return s.send(ctx, id, text)
}

func (s *ConversationStore) send(ctx context.Context, target int64, text string) (*entities.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.ErrEmptyMessage
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return nil, apperr.ErrBusy
	}

	var conv *entities.Conversation
	if target != 0 {
		if conv = s.findLocked(target); conv == nil {
			s.mu.Unlock()
			return nil, apperr.NotFound("conversation", target)
		}
	}

	cfg, err := s.activeModelLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !cfg.HasAPIKey() {
		s.mu.Unlock()
		return nil, &apperr.ConfigError{Field: "api_key", Reason: "is required for " + cfg.Name}
	}

	if conv != nil {
		s.activeID = conv.ID
	} else {
		conv = s.findLocked(s.activeID)
	}
	if conv == nil {
		conv = s.createLocked()
		s.appendLocked(conv, entities.RoleSystem, constants.NoteNewChat)
	}
	s.appendLocked(conv, entities.RoleUser, text)
	if err := s.commitLocked(ctx, conv); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	s.sending = true
	convID := conv.ID
	history := slices.Clone(conv.Messages)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	s.metrics.RecordMessageSent()
	reply, dispatchErr := s.dispatcher.Complete(ctx, cfg, history)

	s.mu.Lock()
	defer s.mu.Unlock()

	conv = s.findLocked(convID)
	if conv == nil {
		// deleted while the call was outstanding
		if dispatchErr != nil {
			return nil, dispatchErr
		}
		return nil, apperr.NotFound("conversation", convID)
	}

	if dispatchErr != nil {
		note := s.appendLocked(conv, entities.RoleSystem, fmt.Sprintf(constants.NoteErrorFmt, dispatchErr.Error()))
		if err := s.commitLocked(ctx, conv); err != nil {
			s.logger.Error("Failed to persist error note", logutil.Fields{"conversation_id": convID, "error": err})
		}
		return &note, dispatchErr
	}

	s.metrics.RecordReplyReceived()
	msg := s.appendLocked(conv, entities.RoleAssistant, reply)
	if err := s.commitLocked(ctx, conv); err != nil {
		return &msg, err
	}
	return &msg, nil
}

// IsSending reports whether a send is outstanding
func (s *ConversationStore) IsSending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Export renders a stored conversation as Markdown and returns it with its download filename
func (s *ConversationStore) Export(id int64) (markdown, filename string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(id)
	if conv == nil {
		return "", "", apperr.NotFound("conversation", id)
	}
	return s.renderer.ConvertToMarkdown(conv, s.modelLabelLocked()), export.DownloadFilename(conv), nil
}

// Flush waits for outstanding secondary writes and event publications
func (s *ConversationStore) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to flush background writes: %w", ctx.Err())
	}
}

func (s *ConversationStore) createLocked() *entities.Conversation {
	conv := entities.NewConversation()
	s.conversations = append([]*entities.Conversation{conv}, s.conversations...)
	sortConversations(s.conversations)
	s.activeID = conv.ID

	s.logger.Debug("Created conversation", logutil.Fields{"conversation_id": conv.ID})
	return conv
}

func (s *ConversationStore) appendLocked(conv *entities.Conversation, role entities.MessageRole, text string) entities.Message {
	msg := *entities.NewMessage(role, text)
	conv.AddMessage(msg)
	sortConversations(s.conversations)
	return msg
}

// commitLocked persists the list, then snapshots conv to the secondary store
// and announces the change in the background.
func (s *ConversationStore) commitLocked(ctx context.Context, conv *entities.Conversation) error {
	if err := s.persistLocked(ctx); err != nil {
		return err
	}

	var record *entities.ExportRecord
	if s.secondary != nil {
		record = entities.NewExportRecord(conv, s.renderer.ConvertToMarkdown(conv, s.modelLabelLocked()))
	}
	event := ports.ChangeEvent{
		Type:           ports.EventConversationUpdated,
		ConversationID: conv.ID,
		Title:          conv.Title,
		MessageCount:   conv.MessageCount(),
		Timestamp:      conv.LastEdited,
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		bgCtx, cancel := s.backgroundContext(ctx)
		defer cancel()

		if record != nil {
			if err := s.secondary.Put(bgCtx, record); err != nil {
				s.secondaryFailed("put", record.ID, err)
			}
		}
		s.publish(bgCtx, fmt.Sprintf(ports.SubjectConversationUpdated, event.ConversationID), event)
	}()
	return nil
}

func (s *ConversationStore) persistLocked(ctx context.Context) error {
	blob, err := json.Marshal(s.conversations)
	if err != nil {
		return fmt.Errorf("failed to encode conversations: %w", err)
	}
	if err := s.primary.Write(ctx, ports.KeyConversations, blob); err != nil {
		return fmt.Errorf("failed to persist conversations: %w", err)
	}
	return nil
}

func (s *ConversationStore) backgroundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.bgTimeout)
}

func (s *ConversationStore) secondaryFailed(op string, id int64, err error) {
	s.metrics.RecordSecondaryFailure(op)
	s.logger.Warn("Secondary store write failed", logutil.Fields{
		"conversation_id": id,
		"operation":       op,
		"error":           &apperr.PersistenceError{Op: op, ID: id, Err: err},
	})
}

func (s *ConversationStore) publish(ctx context.Context, subject string, event ports.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJSON(ctx, subject, event); err != nil {
		s.metrics.RecordEventDropped()
		s.logger.Debug("Change event dropped", logutil.Fields{"subject": subject, "error": err})
	}
}

func (s *ConversationStore) activeModelLocked() (*entities.ModelConfig, error) {
	if s.activeModelID != "" {
		return s.models.GetEnabled(s.activeModelID)
	}
	enabled := s.models.ListEnabled()
	if len(enabled) == 0 {
		return nil, &apperr.ConfigError{Field: "model", Reason: "no enabled model configuration"}
	}
	return enabled[0], nil
}

func (s *ConversationStore) modelLabelLocked() string {
	cfg, err := s.activeModelLocked()
	if err != nil {
		return ""
	}
	return cfg.Name
}

func (s *ConversationStore) findLocked(id int64) *entities.Conversation {
	if i := s.indexLocked(id); i >= 0 {
		return s.conversations[i]
	}
	return nil
}

func (s *ConversationStore) indexLocked(id int64) int {
	if id == 0 {
		return -1
	}
	return slices.IndexFunc(s.conversations, func(c *entities.Conversation) bool { return c.ID == id })
}

// sortConversations orders by LastEdited descending, newest id first on ties
func sortConversations(conversations []*entities.Conversation) {
	slices.SortStableFunc(conversations, func(a, b *entities.Conversation) int {
		if c := b.LastEdited.Compare(a.LastEdited); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
