package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/internal/common/apperrors"
	"github.com/deskwise/deskwise/internal/desksrv/db/dberror"
	"github.com/deskwise/deskwise/internal/desksrv/db/models"
)

func newPairing(userID, deskID string, start time.Time) *models.Session {
	return &models.Session{
		Kind:      models.SessionKindPairing,
		UserID:    userID,
		DeskID:    deskID,
		StartTime: start,
	}
}

func newBooking(userID, deskID string, start, end time.Time) *models.Session {
	return &models.Session{
		Kind:      models.SessionKindBooking,
		UserID:    userID,
		DeskID:    deskID,
		StartTime: start,
		EndTime:   &end,
	}
}

func TestOpenPairingExclusivity(t *testing.T) {
	ctx := context.Background()
	store := New()
	start := time.Now()

	require.Nil(t, store.CreatePairing(ctx, newPairing("alice", "desk-1", start)))

	err := store.CreatePairing(ctx, newPairing("alice", "desk-2", start))
	assert.ErrorIs(t, err, dberror.ErrAlreadyExists)

	err = store.CreatePairing(ctx, newPairing("bob", "desk-1", start))
	assert.ErrorIs(t, err, dberror.ErrAlreadyExists)

	found, goerr := store.FindOpenPairingByDesk(ctx, "desk-1")
	require.Nil(t, goerr)
	assert.Equal(t, "alice", found.UserID)
}

func TestClosePairingFreesUserAndDesk(t *testing.T) {
	ctx := context.Background()
	store := New()
	start := time.Now()

	pairing := newPairing("alice", "desk-1", start)
	require.Nil(t, store.CreatePairing(ctx, pairing))
	require.Nil(t, store.ClosePairing(ctx, pairing.SessionID, start.Add(time.Hour)))

	_, err := store.FindOpenPairingByUser(ctx, "alice")
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	require.Nil(t, store.CreatePairing(ctx, newPairing("bob", "desk-1", start.Add(time.Hour))))
}

func TestClosePairingAlreadyClosed(t *testing.T) {
	ctx := context.Background()
	store := New()

	pairing := newPairing("alice", "desk-1", time.Now())
	require.Nil(t, store.CreatePairing(ctx, pairing))
	require.Nil(t, store.ClosePairing(ctx, pairing.SessionID, time.Now()))

	err := store.ClosePairing(ctx, pairing.SessionID, time.Now())
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestFindOverlappingBookingHalfOpen(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	booked := newBooking("alice", "desk-1", base, base.Add(time.Hour))
	require.Nil(t, store.CreateBooking(ctx, booked))

	// Adjacent window sharing a boundary does not overlap.
	_, err := store.FindOverlappingBooking(ctx, "desk-1", base.Add(time.Hour), base.Add(2*time.Hour))
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	_, err = store.FindOverlappingBooking(ctx, "desk-1", base.Add(-time.Hour), base)
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	found, err := store.FindOverlappingBooking(ctx, "desk-1", base.Add(30*time.Minute), base.Add(90*time.Minute))
	require.Nil(t, err)
	assert.Equal(t, booked.SessionID, found.SessionID)

	// Other desks are unaffected.
	_, err = store.FindOverlappingBooking(ctx, "desk-2", base, base.Add(time.Hour))
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestFindLiveBookingBoundaries(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	booked := newBooking("alice", "desk-1", base, base.Add(time.Hour))
	require.Nil(t, store.CreateBooking(ctx, booked))

	found, err := store.FindLiveBooking(ctx, "desk-1", base)
	require.Nil(t, err)
	assert.Equal(t, booked.SessionID, found.SessionID)

	_, err = store.FindLiveBooking(ctx, "desk-1", base.Add(time.Hour))
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestAppendSampleTickGuard(t *testing.T) {
	ctx := context.Background()
	store := New()

	pairing := newPairing("alice", "desk-1", time.Now())
	require.Nil(t, store.CreatePairing(ctx, pairing))

	appended, err := store.AppendSample(ctx, pairing.SessionID, models.HeightSample{OffsetSeconds: 0, HeightMM: 700}, 1)
	require.Nil(t, err)
	assert.True(t, appended)

	// Within the same tick nothing is recorded.
	appended, err = store.AppendSample(ctx, pairing.SessionID, models.HeightSample{OffsetSeconds: 0.5, HeightMM: 900}, 1)
	require.Nil(t, err)
	assert.False(t, appended)

	appended, err = store.AppendSample(ctx, pairing.SessionID, models.HeightSample{OffsetSeconds: 1, HeightMM: 900}, 1)
	require.Nil(t, err)
	assert.True(t, appended)

	got, goerr := store.GetSession(ctx, pairing.SessionID)
	require.Nil(t, goerr)
	require.Len(t, got.HeightHistory, 2)
	assert.Equal(t, 700, got.HeightHistory[0].HeightMM)
	assert.Equal(t, 900, got.HeightHistory[1].HeightMM)
}

func TestAppendSampleConcurrentSameTick(t *testing.T) {
	ctx := context.Background()
	store := New()

	pairing := newPairing("alice", "desk-1", time.Now())
	require.Nil(t, store.CreatePairing(ctx, pairing))

	var wg sync.WaitGroup
	appends := make(chan bool, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.AppendSample(ctx, pairing.SessionID, models.HeightSample{OffsetSeconds: 5, HeightMM: 700}, 1)
			assert.Nil(t, err)
			appends <- ok
		}()
	}
	wg.Wait()
	close(appends)

	recorded := 0
	for ok := range appends {
		if ok {
			recorded++
		}
	}
	assert.Equal(t, 1, recorded)

	got, err := store.GetSession(ctx, pairing.SessionID)
	require.Nil(t, err)
	assert.Len(t, got.HeightHistory, 1)
}

func TestListActiveSessionsWindow(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	windowStart := now.Add(-24 * time.Hour)

	inWindow := newPairing("alice", "desk-1", now.Add(-time.Hour))
	require.Nil(t, store.CreatePairing(ctx, inWindow))

	liveBooking := newBooking("alice", "desk-2", now.Add(-30*time.Minute), now.Add(30*time.Minute))
	require.Nil(t, store.CreateBooking(ctx, liveBooking))

	expired := newBooking("alice", "desk-3", now.Add(-3*time.Hour), now.Add(-2*time.Hour))
	require.Nil(t, store.CreateBooking(ctx, expired))

	other := newPairing("bob", "desk-4", now.Add(-time.Hour))
	require.Nil(t, store.CreatePairing(ctx, other))

	sessions, err := store.ListActiveSessions(ctx, "alice", windowStart, now)
	require.Nil(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, liveBooking.SessionID, sessions[0].SessionID)
	assert.Equal(t, inWindow.SessionID, sessions[1].SessionID)
}

func TestGetSessionReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := New()

	pairing := newPairing("alice", "desk-1", time.Now())
	require.Nil(t, store.CreatePairing(ctx, pairing))

	got, err := store.GetSession(ctx, pairing.SessionID)
	require.Nil(t, err)
	got.UserID = "mallory"
	got.HeightHistory = append(got.HeightHistory, models.HeightSample{OffsetSeconds: 1, HeightMM: 1})

	again, err := store.GetSession(ctx, pairing.SessionID)
	require.Nil(t, err)
	assert.Equal(t, "alice", again.UserID)
	assert.Empty(t, again.HeightHistory)
}

func TestWithDeskLockSerializes(t *testing.T) {
	ctx := context.Background()
	store := New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithDeskLock(ctx, "desk-1", func(ctx context.Context) apperrors.Error {
				counter++
				return nil
			})
			assert.Nil(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, counter)
}
