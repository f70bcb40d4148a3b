package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGuardNilReferenceNeverMatches(t *testing.T) {
	repo := newMemoryRepo()
	guard := NewGuard(repo)

	applied, err := guard.AlreadyApplied(context.Background(), nil, ReasonReceipt, uuid.New())
	require.NoError(t, err)
	require.False(t, applied)
}

func TestGuardMatchesRecordedTuple(t *testing.T) {
	repo := newMemoryRepo()
	guard := NewGuard(repo)
	ctx := context.Background()
	variantID := uuid.New()
	ref := uuid.New()

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.AppendLedger(ctx, LedgerEntry{
			VariantID:   variantID,
			Reason:      ReasonReservationHold,
			ReferenceID: &ref,
		})
	})
	require.NoError(t, err)

	applied, err := guard.AlreadyApplied(ctx, &ref, ReasonReservationHold, variantID)
	require.NoError(t, err)
	require.True(t, applied)

	// Same reference under a different reason is a distinct operation.
	applied, err = guard.AlreadyApplied(ctx, &ref, ReasonReservationRelease, variantID)
	require.NoError(t, err)
	require.False(t, applied)

	// Same reference against a different variant is a distinct operation.
	applied, err = guard.AlreadyApplied(ctx, &ref, ReasonReservationHold, uuid.New())
	require.NoError(t, err)
	require.False(t, applied)
}

func TestGuardUninitialised(t *testing.T) {
	var guard *Guard
	ref := uuid.New()
	_, err := guard.AlreadyApplied(context.Background(), &ref, ReasonReceipt, uuid.New())
	require.Error(t, err)
}
