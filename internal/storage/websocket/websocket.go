// Package websocket streams scene changes and engine status to a remote
// viewer. The stream is write-only: scenes saved here cannot be read back.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mapscene/animator/internal/storage"
	"github.com/mapscene/animator/pkg/core"
	"github.com/mapscene/animator/pkg/streaming"
)

// ClientName identifies this process in the hello message.
const ClientName = "mapscene"

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams scenes over WebSocket.
type Backend struct {
	conn      *connection
	cfg       Config
	sessionID string
	logger    *slog.Logger
}

var (
	_ storage.Backend   = (*Backend)(nil)
	_ storage.Publisher = (*Backend)(nil)
)

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn:      newConnection(logger),
		cfg:       cfg,
		sessionID: uuid.NewString(),
		logger:    logger,
	}
}

// SessionID is the id announced in the hello message.
func (b *Backend) SessionID() string {
	return b.sessionID
}

// Init connects and waits for the server to acknowledge the hello.
func (b *Backend) Init() error {
	if b.cfg.URL == "" {
		return errors.New("websocket backend has no URL")
	}
	if err := b.conn.dial(b.cfg.URL, b.cfg.Secret); err != nil {
		return err
	}

	hello, err := marshalEnvelope(streaming.TypeHello, streaming.HelloPayload{
		Client:    ClientName,
		SessionID: b.sessionID,
	})
	if err != nil {
		return err
	}
	b.conn.setHello(hello)

	if err := b.conn.sendAndWait(hello, streaming.TypeHello, ackTimeout); err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	b.logger.Info("scene stream connected", "url", b.cfg.URL, "session", b.sessionID)
	return nil
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	b.logger.Debug("scene stream closing",
		"sent", b.conn.sent.Load(), "dropped", b.conn.dropped())
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

func (b *Backend) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, msgType, ackTimeout)
}

// SaveScene sends the full scene and waits for the server to acknowledge it.
func (b *Backend) SaveScene(s core.Scene) error {
	if s.ID == "" {
		return errors.New("scene has no id")
	}
	return b.sendEnvelopeAndWait(streaming.TypeSceneSaved, s)
}

// LoadScene is not supported by a write-only stream.
func (b *Backend) LoadScene(string) (core.Scene, error) {
	return core.Scene{}, storage.ErrUnsupported
}

// ListScenes is not supported by a write-only stream.
func (b *Backend) ListScenes() ([]core.SceneSummary, error) {
	return nil, storage.ErrUnsupported
}

// DeleteScene tells the server to forget id.
func (b *Backend) DeleteScene(id string) error {
	if id == "" {
		return errors.New("scene has no id")
	}
	return b.sendEnvelope(streaming.TypeSceneDeleted, streaming.SceneDeletedPayload{ID: id})
}

// Publish sends an arbitrary typed payload without waiting.
func (b *Backend) Publish(msgType string, payload any) error {
	return b.sendEnvelope(msgType, payload)
}
