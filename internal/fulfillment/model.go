package fulfillment

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

type Action string

const (
	ActionCreateOrder    Action = "create_order"
	ActionGenerateAWB    Action = "generate_awb"
	ActionSchedulePickup Action = "schedule_pickup"
)

type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// LogEntry is one row of the append-only fulfillment audit trail. An entry
// with outcome pending is written before every remote call and a success or
// error entry after it, so the log shows attempted actions even if the
// process dies mid-call. Entries are never mutated or deleted.
type LogEntry struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrderID      uuid.UUID       `json:"order_id" db:"order_id"`
	Action       Action          `json:"action" db:"action"`
	Outcome      Outcome         `json:"outcome" db:"outcome"`
	Request      json.RawMessage `json:"request,omitempty" db:"request"`
	Response     json.RawMessage `json:"response,omitempty" db:"response"`
	ErrorMessage string          `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
