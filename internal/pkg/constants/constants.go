package constants

import "time"

// Application constants
const (
	ServiceName    = "ringil"
	ServiceVersion = "v1.0.0"
	APIVersion     = "v1"
)

// Default timeouts
const (
	DefaultHTTPTimeout      = 10 * time.Second
	DatabaseTimeout         = 10 * time.Second
	SecondaryStoreTimeout   = 10 * time.Second
	MessagingTimeout        = 5 * time.Second
	HealthCheckTimeout      = 5 * time.Second
	GracefulShutdownTimeout = 30 * time.Second
)

// Session defaults
const (
	// DefaultPageSize is how many conversations the history list shows when collapsed
	DefaultPageSize = 5
	MaxPageLimit    = 100
)

// Database configuration
const (
	DatabaseMaxOpenConns    = 1
	DatabaseConnMaxLifetime = 5 * time.Minute
	MigrationsTableName     = "schema_migrations"
	DefaultDBPath           = "./data/ringil.db"
	DefaultExportsTable     = "ringil-exports"
	DefaultKVBucket         = "ringil_exports"
)

// Secondary store backends
const (
	BackendSQLite   = "sqlite"
	BackendNATS     = "nats"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// HTTP status messages
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Error messages
const (
	ErrMsgInvalidRequest = "invalid request"
	ErrMsgInternalServer = "internal server error"
	ErrMsgBusy           = "a message is already being sent"
)

// Success messages
const (
	MsgConversationDeleted = "conversation deleted"
	MsgConversationRenamed = "conversation renamed"
	MsgModelDeleted        = "model configuration deleted"
	MsgModelSwitched       = "model switched successfully"
)

// Chat annotations appended as system messages
const (
	NoteNewChat          = "New chat started"
	NoteModelSwitchedFmt = "Model switched to %s"
	NoteErrorFmt         = "Error: %s"
)

// Completion defaults
const (
	FallbackModelID = "grok-2-latest"
)

// WebSocket configuration
const (
	WebSocketWriteWait      = 10 * time.Second
	WebSocketPongWait       = 60 * time.Second
	WebSocketPingPeriod     = (WebSocketPongWait * 9) / 10
	WebSocketMaxMessageSize = 512
	WebSocketSendBuffer     = 256
)

// Log formats
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// HTTP headers
const (
	HeaderContentType        = "Content-Type"
	HeaderContentDisposition = "Content-Disposition"
	HeaderRequestID          = "X-Request-ID"
)

// Content types
const (
	ContentTypeJSON     = "application/json"
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
)
