package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity is the task type for the nightly ledger drift scan.
	TaskLedgerIntegrity = "stock:ledger_integrity"
)

// LedgerIntegrityPayload carries scheduling metadata for the drift scan.
type LedgerIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerIntegrityTask constructs an Asynq task for the ledger drift scan.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	payload := LedgerIntegrityPayload{ScheduledFor: at}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}
