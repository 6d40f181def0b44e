package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/internal/pkg/constants"
	"github.com/findirfin/ringil/internal/pkg/logutil"
)

// Config holds connection settings for the NATS adapter
type Config struct {
	URL           string
	Name          string
	EnableStream  bool
	RetentionDays int
	KVBucket      string
}

// MessageHandler processes a message received on a subject
type MessageHandler func(ctx context.Context, subject string, data []byte) error

// Adapter publishes change events over NATS and, with JetStream, hosts the
// export key-value bucket.
type Adapter struct {
	conn      *nats.Conn
	js        nats.JetStreamContext
	logger    *logutil.Logger
	subs      map[string]*nats.Subscription
	subsMutex sync.RWMutex
}

var _ ports.EventPublisher = (*Adapter)(nil)

// NewAdapter connects to NATS; JetStream is set up when a stream or bucket is requested
func NewAdapter(cfg Config, logger *logutil.Logger) (*Adapter, error) {
	if logger == nil {
		logger = logutil.NewDefaultLogger()
	}
	name := cfg.Name
	if name == "" {
		name = constants.ServiceName + "-events"
	}

	conn, err := nats.Connect(cfg.URL,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectBufSize(5*1024*1024),
		nats.Name(name),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", logutil.Fields{"error": err})
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", logutil.Fields{"url": c.ConnectedUrl()})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	adapter := &Adapter{
		conn:   conn,
		logger: logger,
		subs:   make(map[string]*nats.Subscription),
	}

	if cfg.EnableStream || cfg.KVBucket != "" {
		js, err := conn.JetStream(nats.PublishAsyncMaxPending(256))
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to get JetStream context: %w", err)
		}
		adapter.js = js
	}

	if cfg.EnableStream {
		if err := adapter.setupStream(cfg.RetentionDays); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to setup JetStream stream: %w", err)
		}
	}

	return adapter, nil
}

// streamName holds every change event so late subscribers can replay history
const streamName = "RINGIL_EVENTS"

func (a *Adapter) setupStream(retentionDays int) error {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	cfg := &nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"conversation.>", "models.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Duration(retentionDays) * 24 * time.Hour,
		MaxMsgs:   100000,
		Storage:   nats.FileStorage,
	}

	info, err := a.js.StreamInfo(streamName)
	if errors.Is(err, nats.ErrStreamNotFound) {
		if _, err := a.js.AddStream(cfg); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get stream info for %s: %w", streamName, err)
	}

	if needsUpdate(info.Config, *cfg) {
		if _, err := a.js.UpdateStream(cfg); err != nil {
			return fmt.Errorf("failed to update stream %s: %w", streamName, err)
		}
	}
	return nil
}

// needsUpdate checks if a stream configuration needs updating
func needsUpdate(existing, desired nats.StreamConfig) bool {
	return existing.MaxAge != desired.MaxAge ||
		existing.MaxMsgs != desired.MaxMsgs ||
		strings.Join(existing.Subjects, ",") != strings.Join(desired.Subjects, ",")
}

// Publish sends data to subject. With a stream configured the call waits for
// the JetStream acknowledgement.
func (a *Adapter) Publish(ctx context.Context, subject string, data []byte) error {
	if a.js == nil {
		if err := a.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
		}
		return nil
	}

	future, err := a.js.PublishAsync(subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish to JetStream subject %s: %w", subject, err)
	}

	select {
	case <-future.Ok():
		return nil
	case err := <-future.Err():
		if errors.Is(err, nats.ErrNoStreamResponse) {
			// no stream captures this subject; core subscribers still got it
			return nil
		}
		return fmt.Errorf("failed to publish to JetStream subject %s: %w", subject, err)
	case <-ctx.Done():
		return fmt.Errorf("publish timeout for subject %s: %w", subject, ctx.Err())
	case <-time.After(constants.MessagingTimeout):
		return fmt.Errorf("publish timeout for subject %s", subject)
	}
}

// PublishJSON publishes a JSON-serializable object to the subject
func (a *Adapter) PublishJSON(ctx context.Context, subject string, obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to marshal object for subject %s: %w", subject, err)
	}
	return a.Publish(ctx, subject, data)
}

// Subscribe listens for messages on subject until the adapter is closed
func (a *Adapter) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	a.subsMutex.Lock()
	defer a.subsMutex.Unlock()

	if _, exists := a.subs[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	sub, err := a.conn.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(ctx, msg.Subject, msg.Data); err != nil {
			a.logger.Warn("Handler error", logutil.Fields{"subject": msg.Subject, "error": err})
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	a.subs[subject] = sub
	return nil
}

// Exports opens, creating when missing, the key-value bucket used as the secondary store
func (a *Adapter) Exports(bucket string) (*ExportStore, error) {
	if a.js == nil {
		return nil, errors.New("JetStream is not enabled")
	}
	if bucket == "" {
		bucket = constants.DefaultKVBucket
	}

	kv, err := a.js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = a.js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "Markdown snapshots of ringil conversations",
			History:     1,
			Storage:     nats.FileStorage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open key-value bucket %s: %w", bucket, err)
	}

	return newExportStore(&kvBucket{kv: kv}), nil
}

// Close unsubscribes everything and drains the connection
func (a *Adapter) Close() error {
	a.subsMutex.Lock()
	defer a.subsMutex.Unlock()

	for subject, sub := range a.subs {
		if err := sub.Unsubscribe(); err != nil {
			a.logger.Warn("Error unsubscribing", logutil.Fields{"subject": subject, "error": err})
		}
	}
	a.subs = make(map[string]*nats.Subscription)

	if a.conn != nil {
		if err := a.conn.Drain(); err != nil {
			a.conn.Close()
		}
	}
	return nil
}

// Ping checks messaging connectivity
func (a *Adapter) Ping() error {
	if a.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	if !a.conn.IsConnected() {
		return fmt.Errorf("NATS connection is not active")
	}

	rtt, err := a.conn.RTT()
	if err != nil {
		return fmt.Errorf("failed to get RTT: %w", err)
	}
	if rtt > constants.MessagingTimeout {
		return fmt.Errorf("high latency detected: %v", rtt)
	}
	return nil
}

// ConnectionStatus returns connection details for the health endpoint
func (a *Adapter) ConnectionStatus() map[string]interface{} {
	status := make(map[string]interface{})

	if a.conn == nil {
		status["connected"] = false
		return status
	}

	status["connected"] = a.conn.IsConnected()
	status["url"] = a.conn.ConnectedUrl()
	status["server_name"] = a.conn.ConnectedServerName()

	stats := a.conn.Stats()
	status["messages_out"] = stats.OutMsgs
	status["reconnects"] = stats.Reconnects
	status["jetstream_enabled"] = a.js != nil

	a.subsMutex.RLock()
	status["active_subscriptions"] = len(a.subs)
	a.subsMutex.RUnlock()

	return status
}
