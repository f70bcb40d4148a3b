package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	variants map[uuid.UUID]Variant
	skus     map[string]struct{}
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{variants: make(map[uuid.UUID]Variant), skus: make(map[string]struct{})}
}

func (r *memoryRepo) Create(ctx context.Context, variant Variant) error {
	if _, ok := r.skus[variant.SKU]; ok {
		return ErrDuplicateSKU
	}
	r.skus[variant.SKU] = struct{}{}
	r.variants[variant.ID] = variant
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Variant, error) {
	if v, ok := r.variants[id]; ok {
		return v, nil
	}
	return Variant{}, ErrVariantNotFound
}

func (r *memoryRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := r.variants[id]
	return ok, nil
}

func TestRegisterAssignsID(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	created, err := svc.Register(ctx, Variant{SKU: "TSHIRT-RED-M", Name: "Red T-Shirt M", Active: true})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "TSHIRT-RED-M", got.SKU)
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, Variant{Name: "No SKU"})
	require.ErrorIs(t, err, ErrInvalidVariant)

	_, err = svc.Register(ctx, Variant{SKU: "SKU-1"})
	require.ErrorIs(t, err, ErrInvalidVariant)
}

func TestRegisterDuplicateSKU(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, Variant{SKU: "SKU-1", Name: "First"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, Variant{SKU: "SKU-1", Name: "Second"})
	require.ErrorIs(t, err, ErrDuplicateSKU)
}

func TestGetUnknownVariant(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrVariantNotFound)
}
