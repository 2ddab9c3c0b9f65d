package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types appended by the data source and the seed importer.
const (
	DataImported         = "data.imported"
	DataReset            = "data.reset"
	NotificationRead     = "notification.read"
	NotificationsReadAll = "notification.read_all"
	NotificationDeleted  = "notification.deleted"
)

// Entity kinds.
const (
	KindNotification = "notification"
	KindDataset      = "dataset"
)

const DefaultActor = "local"

type Payload map[string]any

// Writer appends rows to the events table inside the caller's transaction.
type Writer struct {
	Now   func() time.Time
	Actor string
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID string, payload Payload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	actor := w.Actor
	if actor == "" {
		actor = DefaultActor
	}
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	var id any
	if entityID != "" {
		id = entityID
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339Nano), evtType, entityKind, id, actor, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}
