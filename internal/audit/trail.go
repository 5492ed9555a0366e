// Package audit records clinically significant actions (dose writes, login
// outcomes, reminder sends) to an append-only trail. The trail is backed by
// EventStoreDB, which cannot rewrite history; when no store is configured the
// service falls back to a no-op recorder and keeps running.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/google/uuid"

	"github.com/clinicware/medtrack/internal/shared/config"
	"github.com/clinicware/medtrack/internal/shared/types"
)

// StreamName is the stream where all audit entries are appended.
const StreamName = "medtrack-audit"

// EventType is the ESDB event type for audit entries.
const EventType = "AuditEntry"

// Entry is a single recorded action.
type Entry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	SubjectID types.ID       `json:"subject_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Recorder records actions to the trail. Implementations must never fail the
// calling operation: audit is an observability concern, not a write barrier.
type Recorder interface {
	Record(ctx context.Context, action string, subject types.ID, data map[string]any)
}

// Nop discards every entry. Used when no event store is configured.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, string, types.ID, map[string]any) {}

// Trail is the EventStoreDB-backed recorder.
type Trail struct {
	client *esdb.Client
}

// NewTrail connects to EventStoreDB using the audit configuration.
func NewTrail(cfg config.AuditConfig) (*Trail, error) {
	settings, err := esdb.ParseConnectionString(connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse audit store connection string: %w", err)
	}

	client, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit store client: %w", err)
	}

	return &Trail{client: client}, nil
}

func connectionString(cfg config.AuditConfig) string {
	var auth string
	if cfg.Username != "" && cfg.Password != "" {
		auth = fmt.Sprintf("%s:%s@", cfg.Username, cfg.Password)
	}
	params := ""
	if cfg.Insecure {
		params = "?tls=false&tlsVerifyCert=false"
	}
	return fmt.Sprintf("esdb://%s%s:%d%s", auth, cfg.Host, cfg.Port, params)
}

// Record appends an entry to the audit stream. Failures are logged, never
// propagated; a downed audit store must not block dose logging or logins.
func (t *Trail) Record(ctx context.Context, action string, subject types.ID, data map[string]any) {
	entry := Entry{
		ID:        uuid.New().String(),
		Action:    action,
		SubjectID: subject,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		log.Printf("audit: failed to marshal entry: %v", err)
		return
	}

	event := esdb.EventData{
		EventID:     uuid.New(),
		EventType:   EventType,
		ContentType: esdb.ContentTypeJson,
		Data:        payload,
	}

	_, err = t.client.AppendToStream(ctx, StreamName, esdb.AppendToStreamOptions{
		ExpectedRevision: esdb.Any{},
	}, event)
	if err != nil {
		log.Printf("audit: failed to append %s entry: %v", action, err)
	}
}

// Recent reads the newest entries from the trail, newest first. Staff-facing.
func (t *Trail) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	stream, err := t.client.ReadStream(ctx, StreamName, esdb.ReadStreamOptions{
		Direction: esdb.Backwards,
		From:      esdb.End{},
	}, uint64(limit))
	if err != nil {
		if esdbErr, ok := esdb.FromError(err); ok && esdbErr.Code() == esdb.ErrorCodeResourceNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read audit stream: %w", err)
	}
	defer stream.Close()

	var entries []Entry
	for {
		event, err := stream.Recv()
		if err != nil {
			break
		}
		if event.Event == nil || event.Event.EventType != EventType {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(event.Event.Data, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Close closes the underlying client.
func (t *Trail) Close() {
	if t.client != nil {
		t.client.Close()
	}
}
