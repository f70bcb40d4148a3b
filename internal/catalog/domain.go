package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Variant is the sellable item identity. Pricing, tax and descriptive data
// live in the upstream catalog service; this projection carries only what the
// stock engine needs.
type Variant struct {
	ID        uuid.UUID
	SKU       string
	Name      string
	Active    bool
	CreatedAt time.Time
}

// ErrVariantNotFound indicates an unknown variant id.
var ErrVariantNotFound = errors.New("catalog: variant not found")

// ErrDuplicateSKU indicates the SKU is already registered.
var ErrDuplicateSKU = errors.New("catalog: sku already exists")

// ErrInvalidVariant indicates missing required variant fields.
var ErrInvalidVariant = errors.New("catalog: invalid variant")
