package stock

import (
	"time"

	"github.com/google/uuid"
)

// StockMovedEvent is emitted after a successful mutation commits. Delta is
// the net on-hand change; zero for pure reservation events.
type StockMovedEvent struct {
	VariantID  uuid.UUID
	Delta      int64
	Reason     Reason
	OccurredAt time.Time
}
