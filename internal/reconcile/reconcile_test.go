package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/notice"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/tron"
)

type fakeChain struct {
	owners map[string]string
	err    error
}

func (f *fakeChain) OwnerOf(ctx context.Context, tokenID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	owner, ok := f.owners[tokenID]
	if !ok {
		return "", errors.New("no such token")
	}
	return owner, nil
}

func testAddr(t *testing.T, fill byte) string {
	t.Helper()
	payload := make([]byte, 21)
	payload[0] = 0x41
	for i := 1; i < len(payload); i++ {
		payload[i] = fill
	}
	addr, err := tron.EncodeAddress(payload)
	require.NoError(t, err)
	return addr
}

func seedNotice(t *testing.T, store *notice.InMemory, caseNumber, alertID string, recipients ...string) {
	t.Helper()
	_, err := store.UpsertNotice(context.Background(), notice.Record{
		CaseNumber:   caseNumber,
		AlertTokenID: alertID,
		Recipients:   recipients,
	})
	require.NoError(t, err)
}

func TestFindMissing(t *testing.T) {
	ctx := context.Background()
	store := notice.NewInMemory()
	wallet := testAddr(t, 0x01)
	seedNotice(t, store, "34-0037", "37", wallet)

	svc := NewService(store)
	missing, err := svc.FindMissing(ctx, wallet, []string{"1", "17", "29", "37"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "17", "29"}, missing)
}

func TestRepairMissingInsertsInferredPlaceholders(t *testing.T) {
	ctx := context.Background()
	store := notice.NewInMemory()
	wallet := testAddr(t, 0x01)
	seedNotice(t, store, "34-0037", "37", wallet)

	svc := NewService(store)
	report, err := svc.RepairMissing(ctx, wallet, []string{"17", "37"})
	require.NoError(t, err)
	assert.Equal(t, []string{"17"}, report.Missing)
	assert.Equal(t, []string{"PENDING-17"}, report.Created)
	assert.Empty(t, report.Errors)

	rec, err := store.FindByCase(ctx, "PENDING-17")
	require.NoError(t, err)
	assert.Equal(t, "17", rec.AlertTokenID)
	assert.Equal(t, "18", rec.DocumentTokenID)
	assert.Equal(t, notice.PairingInferred, rec.PairingSource)
	assert.False(t, rec.Verified)
	assert.True(t, rec.HasRecipient(wallet))
}

func TestRepairMissingDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := notice.NewInMemory()
	wallet := testAddr(t, 0x01)

	svc := NewService(store, WithDryRun(true))
	report, err := svc.RepairMissing(ctx, wallet, []string{"5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"PENDING-5"}, report.Created)

	_, err = store.FindByCase(ctx, "PENDING-5")
	assert.ErrorIs(t, err, notice.ErrNotFound)
}

func TestRepairMissingFlagsNonNumericID(t *testing.T) {
	ctx := context.Background()
	store := notice.NewInMemory()
	wallet := testAddr(t, 0x01)

	svc := NewService(store)
	report, err := svc.RepairMissing(ctx, wallet, []string{"alert-x"})
	require.NoError(t, err)
	require.Len(t, report.Flags, 1)
	assert.Equal(t, FlagNonNumericID, report.Flags[0].Reason)

	rec, err := store.FindByCase(ctx, "PENDING-alert-x")
	require.NoError(t, err)
	assert.Empty(t, rec.DocumentTokenID)
}

func TestRepairMissingSkipsOnOwnerMismatch(t *testing.T) {
	ctx := context.Background()
	store := notice.NewInMemory()
	wallet := testAddr(t, 0x01)
	other := testAddr(t, 0x02)

	svc := NewService(store, WithChain(&fakeChain{owners: map[string]string{"9": other}}))
	report, err := svc.RepairMissing(ctx, wallet, []string{"9"})
	require.NoError(t, err)
	require.Len(t, report.Flags, 1)
	assert.Equal(t, FlagOwnerMismatch, report.Flags[0].Reason)
	assert.Empty(t, report.Created)

	_, err = store.FindByCase(ctx, "PENDING-9")
	assert.ErrorIs(t, err, notice.ErrNotFound)
}

func TestRepairMissingInsertsWhenChainUnreachable(t *testing.T) {
	ctx := context.Background()
	store := notice.NewInMemory()
	wallet := testAddr(t, 0x01)

	svc := NewService(store, WithChain(&fakeChain{err: tron.ErrUnavailable}))
	report, err := svc.RepairMissing(ctx, wallet, []string{"9"})
	require.NoError(t, err)
	require.Len(t, report.Flags, 1)
	assert.Equal(t, FlagChainUnreachable, report.Flags[0].Reason)
	// degraded mode still creates the record, flagged for review
	assert.Equal(t, []string{"PENDING-9"}, report.Created)
}

func TestCheckRecipientDriftFlagsOnly(t *testing.T) {
	ctx := context.Background()
	store := notice.NewInMemory()
	wallet := testAddr(t, 0x01)
	listed := testAddr(t, 0x02)
	seedNotice(t, store, "34-0001", "1", listed)

	svc := NewService(store, WithChain(&fakeChain{owners: map[string]string{"1": wallet}}))
	flags, err := svc.CheckRecipientDrift(ctx, wallet, []string{"1"})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, FlagRecipientDrift, flags[0].Reason)
	assert.Equal(t, "34-0001", flags[0].CaseNumber)

	// recipients stay untouched
	rec, err := store.FindByCase(ctx, "34-0001")
	require.NoError(t, err)
	assert.False(t, rec.HasRecipient(wallet))
	assert.True(t, rec.HasRecipient(listed))
}

func TestCheckRecipientDriftWithoutChain(t *testing.T) {
	ctx := context.Background()
	store := notice.NewInMemory()
	wallet := testAddr(t, 0x01)
	seedNotice(t, store, "34-0001", "1", testAddr(t, 0x02))

	svc := NewService(store)
	flags, err := svc.CheckRecipientDrift(ctx, wallet, []string{"1"})
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, FlagManualReview, flags[0].Reason)
}

func TestCheckRecipientDriftSkipsListedWallet(t *testing.T) {
	ctx := context.Background()
	store := notice.NewInMemory()
	wallet := testAddr(t, 0x01)
	seedNotice(t, store, "34-0001", "1", wallet)

	svc := NewService(store)
	flags, err := svc.CheckRecipientDrift(ctx, wallet, []string{"1"})
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestDeriveDocumentID(t *testing.T) {
	id, ok := deriveDocumentID("41")
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	_, ok = deriveDocumentID("alert-x")
	assert.False(t, ok)
}
