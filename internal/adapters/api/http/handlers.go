package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/findirfin/ringil/internal/adapters/api/websocket"
	"github.com/findirfin/ringil/internal/domain/apperr"
	"github.com/findirfin/ringil/internal/domain/entities"
	"github.com/findirfin/ringil/internal/domain/metrics"
	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/internal/domain/services"
	"github.com/findirfin/ringil/internal/pkg/constants"
	"github.com/findirfin/ringil/internal/pkg/httputil"
	"github.com/findirfin/ringil/internal/pkg/logutil"
)

// HealthCheck reports whether one dependency is usable
type HealthCheck func(ctx context.Context) error

// Dependencies wires the API to the chat core
type Dependencies struct {
	Store    *services.ConversationStore
	Models   *services.ModelRegistry
	Metrics  *metrics.Collector
	Hub      *websocket.Hub
	Exports  ports.ExportReader
	Checks   map[string]HealthCheck
	Logger   *logutil.Logger
	Timeouts httputil.TimeoutConfig
	// Middleware defaults to httputil.DefaultMiddlewareConfig
	Middleware *httputil.MiddlewareConfig
}

// APIHandlers contains all HTTP API handlers
type APIHandlers struct {
	store    *services.ConversationStore
	models   *services.ModelRegistry
	metrics  *metrics.Collector
	wsHub    *websocket.Hub
	exports  ports.ExportReader
	checks   map[string]HealthCheck
	logger   *logutil.Logger
	timeouts httputil.TimeoutConfig
	cors     httputil.MiddlewareConfig
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(deps Dependencies) *APIHandlers {
	logger := deps.Logger
	if logger == nil {
		logger = logutil.NewDefaultLogger()
	}
	timeouts := deps.Timeouts
	if timeouts == (httputil.TimeoutConfig{}) {
		timeouts = httputil.DefaultTimeouts
	}
	cors := httputil.DefaultMiddlewareConfig
	if deps.Middleware != nil {
		cors = *deps.Middleware
	}
	return &APIHandlers{
		store:    deps.Store,
		models:   deps.Models,
		metrics:  deps.Metrics,
		wsHub:    deps.Hub,
		exports:  deps.Exports,
		checks:   deps.Checks,
		logger:   logger,
		timeouts: timeouts,
		cors:     cors,
	}
}

// SetupRoutes configures all API routes
func (h *APIHandlers) SetupRoutes(r *gin.Engine) {
	r.Use(
		httputil.RequestIDMiddleware(),
		httputil.LoggingMiddleware(h.logger),
		httputil.CORSMiddleware(h.cors),
		httputil.TimeoutMiddleware(h.timeouts),
	)

	r.GET("/health", h.handleHealth)

	api := r.Group("/api/" + constants.APIVersion)
	{
		api.GET("/health", h.handleHealth)

		// Conversations
		api.GET("/conversations", h.listConversations)
		api.POST("/conversations", h.createConversation)
		api.GET("/conversations/active", h.getActiveConversation)
		api.GET("/conversations/:id", h.getConversation)
		api.PUT("/conversations/:id", h.renameConversation)
		api.DELETE("/conversations/:id", h.deleteConversation)
		api.GET("/conversations/:id/export", h.exportConversation)

		// Messages
		api.POST("/conversations/:id/messages", h.sendToConversation)
		api.POST("/messages", h.sendMessage)

		// Settings
		api.PUT("/settings/show-all", h.setShowAll)

		// Model configurations
		api.GET("/models", h.listModels)
		api.GET("/models/all", h.listAllModels)
		api.GET("/models/active", h.getActiveModel)
		api.PUT("/models/active", h.selectModel)
		api.POST("/models", h.createModel)
		api.GET("/models/:id", h.getModel)
		api.PUT("/models/:id", h.updateModel)
		api.DELETE("/models/:id", h.deleteModel)

		// Secondary store snapshots
		api.GET("/exports", h.listExports)
		api.GET("/exports/:id", h.getExport)

		// System
		api.GET("/system/metrics", h.getSystemMetrics)
	}

	if h.wsHub != nil {
		r.GET("/ws", h.wsHub.HandleWebSocket)
		api.GET("/ws", h.wsHub.HandleWebSocket)
	}
}

// Health check endpoint
func (h *APIHandlers) handleHealth(c *gin.Context) {
	status := gin.H{
		"status":    constants.StatusOK,
		"timestamp": time.Now().Unix(),
		"service":   constants.ServiceName,
		"version":   constants.ServiceVersion,
	}

	ctx, cancel := httputil.WithTimeout(c.Request.Context(), constants.HealthCheckTimeout)
	defer cancel()

	healthy := true
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			healthy = false
			status[name] = constants.StatusError
			status[name+"_error"] = err.Error()
			continue
		}
		status[name] = constants.StatusOK
	}

	if !healthy {
		status["status"] = constants.StatusError
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ConversationSummary is the list view of a conversation
type ConversationSummary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	Timestamp    time.Time `json:"timestamp"`
	LastEdited   time.Time `json:"last_edited"`
	Active       bool      `json:"active"`
}

func summarize(conv *entities.Conversation, activeID int64) ConversationSummary {
	return ConversationSummary{
		ID:           conv.ID,
		Title:        conv.Title,
		MessageCount: conv.MessageCount(),
		Timestamp:    conv.Timestamp,
		LastEdited:   conv.LastEdited,
		Active:       conv.ID == activeID,
	}
}

// Conversation handlers

func (h *APIHandlers) listConversations(c *gin.Context) {
	page := httputil.ParsePaginationParams(c)
	matches := slices.Collect(h.store.Search(c.Query("search")))
	window := h.store.Window(matches, page.Offset, page.Limit)

	var activeID int64
	if active, ok := h.store.Active(); ok {
		activeID = active.ID
	}

	summaries := make([]ConversationSummary, len(window))
	for i, conv := range window {
		summaries[i] = summarize(conv, activeID)
	}

	httputil.SuccessResponseWithMeta(c, summaries, gin.H{
		"total":    len(matches),
		"offset":   page.Offset,
		"limit":    page.Limit,
		"show_all": h.store.ShowAll(),
	})
}

func (h *APIHandlers) createConversation(c *gin.Context) {
	ctx, cancel := httputil.WithOperationContext(c, httputil.OpStorage)
	defer cancel()

	conv, err := h.store.StartNewChat(ctx)
	if err != nil {
		httputil.DomainError(c, err)
		return
	}
	httputil.CreatedResponse(c, conv)
}

func (h *APIHandlers) getActiveConversation(c *gin.Context) {
	conv, ok := h.store.Active()
	if !ok {
		httputil.NotFoundError(c, errors.New("no active conversation"))
		return
	}
	httputil.SuccessResponse(c, conv)
}

func (h *APIHandlers) getConversation(c *gin.Context) {
	id, err := httputil.IDParam(c, "id")
	if err != nil {
		httputil.BadRequestError(c, err)
		return
	}

	conv, err := h.store.LoadConversation(c.Request.Context(), id)
	if err != nil {
		httputil.DomainError(c, err)
		return
	}
	httputil.SuccessResponse(c, conv)
}

func (h *APIHandlers) renameConversation(c *gin.Context) {
	id, err := httputil.IDParam(c, "id")
	if err != nil {
		httputil.BadRequestError(c, err)
		return
	}

	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequestError(c, err)
		return
	}

	ctx, cancel := httputil.WithOperationContext(c, httputil.OpStorage)
	defer cancel()

	if err := h.store.RenameConversation(ctx, id, req.Title); err != nil {
		httputil.DomainError(c, err)
		return
	}

	conv, err := h.store.Get(id)
	if err != nil {
		httputil.DomainError(c, err)
		return
	}
	httputil.SuccessResponse(c, conv)
}

func (h *APIHandlers) deleteConversation(c *gin.Context) {
	id, err := httputil.IDParam(c, "id")
	if err != nil {
		httputil.BadRequestError(c, err)
		return
	}

	ctx, cancel := httputil.WithOperationContext(c, httputil.OpStorage)
	defer cancel()

	if err := h.store.DeleteConversation(ctx, id); err != nil {
		httputil.DomainError(c, err)
		return
	}
	httputil.SuccessResponse(c, gin.H{"message": constants.MsgConversationDeleted, "id": id})
}

func (h *APIHandlers) exportConversation(c *gin.Context) {
	id, err := httputil.IDParam(c, "id")
	if err != nil {
		httputil.BadRequestError(c, err)
		return
	}

	markdown, filename, err := h.store.Export(id)
	if err != nil {
		httputil.DomainError(c, err)
		return
	}

	c.Header(constants.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, constants.ContentTypeMarkdown, []byte(markdown))
}

// Message handlers

type sendRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *APIHandlers) sendToConversation(c *gin.Context) {
	id, err := httputil.IDParam(c, "id")
	if err != nil {
		httputil.BadRequestError(c, err)
		return
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequestError(c, err)
		return
	}

	h.send(c, func(ctx context.Context) (*entities.Message, error) {
		return h.store.SendTo(ctx, id, req.Content)
	})
}

func (h *APIHandlers) sendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequestError(c, err)
		return
	}
	h.send(c, func(ctx context.Context) (*entities.Message, error) {
		return h.store.Send(ctx, req.Content)
	})
}

func (h *APIHandlers) send(c *gin.Context, dispatch func(ctx context.Context) (*entities.Message, error)) {
	ctx, cancel := httputil.WithOperationContext(c, httputil.OpCompletion)
	defer cancel()

	msg, err := dispatch(ctx)

	payload := gin.H{"message": msg}
	if conv, ok := h.store.Active(); ok {
		payload["conversation_id"] = conv.ID
		payload["title"] = conv.Title
	}

	if err != nil {
		if msg != nil {
			// the error note is part of the conversation; hand it back too
			httputil.ErrorResponseWithData(c, httputil.StatusForError(err), err, payload)
			return
		}
		httputil.DomainError(c, err)
		return
	}
	httputil.SuccessResponse(c, payload)
}

// Settings handlers

func (h *APIHandlers) setShowAll(c *gin.Context) {
	var req struct {
		ShowAll *bool `json:"show_all" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequestError(c, err)
		return
	}

	h.store.SetShowAll(*req.ShowAll)
	httputil.SuccessResponse(c, gin.H{"show_all": *req.ShowAll})
}

// Model handlers

func redactAll(configs []*entities.ModelConfig) []*entities.ModelConfig {
	out := make([]*entities.ModelConfig, len(configs))
	for i, cfg := range configs {
		out[i] = cfg.Redacted()
	}
	return out
}

func (h *APIHandlers) listModels(c *gin.Context) {
	httputil.SuccessResponse(c, redactAll(h.models.ListEnabled()))
}

func (h *APIHandlers) listAllModels(c *gin.Context) {
	httputil.SuccessResponse(c, redactAll(h.models.List()))
}

func (h *APIHandlers) getModel(c *gin.Context) {
	cfg, err := h.models.Get(c.Param("id"))
	if err != nil {
		httputil.DomainError(c, err)
		return
	}
	httputil.SuccessResponse(c, cfg.Redacted())
}

func (h *APIHandlers) getActiveModel(c *gin.Context) {
	cfg, err := h.store.ActiveModel()
	if err != nil {
		httputil.DomainError(c, err)
		return
	}
	httputil.SuccessResponse(c, cfg.Redacted())
}

func (h *APIHandlers) selectModel(c *gin.Context) {
	var req struct {
		ModelID string `json:"model_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequestError(c, err)
		return
	}

	ctx, cancel := httputil.WithOperationContext(c, httputil.OpStorage)
	defer cancel()

	cfg, err := h.store.SelectModel(ctx, req.ModelID)
	if err != nil {
		httputil.DomainError(c, err)
		return
	}
	httputil.SuccessResponse(c, gin.H{"message": constants.MsgModelSwitched, "model": cfg.Redacted()})
}

func (h *APIHandlers) createModel(c *gin.Context) {
	var cfg entities.ModelConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		httputil.BadRequestError(c, err)
		return
	}
	if cfg.ID != "" {
		if _, err := h.models.Get(cfg.ID); err == nil {
			httputil.ErrorResponse(c, http.StatusConflict, fmt.Errorf("model %q already exists", cfg.ID))
			return
		}
	}

	saved, ok := h.upsertModel(c, &cfg)
	if !ok {
		return
	}
	httputil.CreatedResponse(c, saved.Redacted())
}

func (h *APIHandlers) updateModel(c *gin.Context) {
	id := c.Param("id")
	existing, err := h.models.Get(id)
	if err != nil {
		httputil.DomainError(c, err)
		return
	}

	var cfg entities.ModelConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		httputil.BadRequestError(c, err)
		return
	}
	cfg.ID = id
	if cfg.APIKey == existing.Redacted().APIKey {
		// the client echoed the masked key back
		cfg.APIKey = existing.APIKey
	}

	saved, ok := h.upsertModel(c, &cfg)
	if !ok {
		return
	}
	httputil.SuccessResponse(c, saved.Redacted())
}

func (h *APIHandlers) upsertModel(c *gin.Context, cfg *entities.ModelConfig) (*entities.ModelConfig, bool) {
	ctx, cancel := httputil.WithOperationContext(c, httputil.OpStorage)
	defer cancel()

	saved, err := h.models.Upsert(ctx, cfg)
	if apperr.IsConfig(err) {
		httputil.ErrorResponse(c, http.StatusUnprocessableEntity, err)
		return nil, false
	}
	if err != nil {
		httputil.DomainError(c, err)
		return nil, false
	}
	return saved, true
}

func (h *APIHandlers) deleteModel(c *gin.Context) {
	ctx, cancel := httputil.WithOperationContext(c, httputil.OpStorage)
	defer cancel()

	if err := h.models.Remove(ctx, c.Param("id")); err != nil {
		httputil.DomainError(c, err)
		return
	}
	httputil.SuccessResponse(c, gin.H{"message": constants.MsgModelDeleted})
}

// Export snapshot handlers

func (h *APIHandlers) listExports(c *gin.Context) {
	if h.exports == nil {
		httputil.ServiceUnavailableError(c, errors.New("the secondary store does not support reading snapshots"))
		return
	}

	ctx, cancel := httputil.WithOperationContext(c, httputil.OpStorage)
	defer cancel()

	records, err := h.exports.List(ctx)
	if err != nil {
		httputil.DomainError(c, err)
		return
	}

	type listing struct {
		ID        int64     `json:"id"`
		Filename  string    `json:"filename"`
		Title     string    `json:"title"`
		Timestamp time.Time `json:"timestamp"`
	}
	out := make([]listing, len(records))
	for i, r := range records {
		out[i] = listing{ID: r.ID, Filename: r.Filename, Title: r.Title, Timestamp: r.Timestamp}
	}
	httputil.SuccessResponse(c, out)
}

func (h *APIHandlers) getExport(c *gin.Context) {
	if h.exports == nil {
		httputil.ServiceUnavailableError(c, errors.New("the secondary store does not support reading snapshots"))
		return
	}
	id, err := httputil.IDParam(c, "id")
	if err != nil {
		httputil.BadRequestError(c, err)
		return
	}

	ctx, cancel := httputil.WithOperationContext(c, httputil.OpStorage)
	defer cancel()

	record, err := h.exports.Get(ctx, id)
	if err != nil {
		httputil.DomainError(c, err)
		return
	}

	c.Header(constants.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", record.Filename))
	c.Data(http.StatusOK, constants.ContentTypeMarkdown, []byte(record.Content))
}

// System handlers

func (h *APIHandlers) getSystemMetrics(c *gin.Context) {
	data := gin.H{"sending": h.store.IsSending()}
	if h.metrics != nil {
		data["metrics"] = h.metrics.Snapshot()
	}
	if h.wsHub != nil {
		data["websocket_connections"] = h.wsHub.ConnectionCount()
	}
	httputil.SuccessResponse(c, data)
}
