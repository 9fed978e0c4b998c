// Package occupancy coordinates desk occupancy: open-ended pairings and
// fixed-window bookings. All checks and mutations against one desk run
// under that desk's store lock so the exclusivity invariants hold under
// concurrent requests.
package occupancy

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/common/apperrors"
	"github.com/deskwise/deskwise/internal/desksrv/db"
	"github.com/deskwise/deskwise/internal/desksrv/db/dberror"
	"github.com/deskwise/deskwise/internal/desksrv/db/models"
)

// Coordinator enforces the occupancy invariants: at most one open pairing
// per desk and per user, and no overlapping bookings per desk.
type Coordinator struct {
	now func() time.Time
}

// NewCoordinator returns a coordinator using wall-clock time.
func NewCoordinator() *Coordinator {
	return &Coordinator{now: time.Now}
}

func newCoordinatorWithClock(now func() time.Time) *Coordinator {
	return &Coordinator{now: now}
}

// Pair opens a pairing between the user and the desk. Fails with
// ErrDeskOccupied if another user holds an open pairing on the desk, and
// with ErrDeskBooked if a booking by a different user covers now. The
// caller's own open pairing, on this desk or any other, is closed first;
// one-open-pairing-per-user is kept by this forced close, not by
// rejecting the request.
func (c *Coordinator) Pair(ctx context.Context, userID, deskID string) (*models.Session, apperrors.Error) {
	store := db.GetStore(ctx)
	if store == nil {
		return nil, ErrOccupancy.Msg("no session store")
	}
	now := c.now()

	var created *models.Session
	err := store.WithDeskLock(ctx, deskID, func(ctx context.Context) apperrors.Error {
		existing, err := store.FindOpenPairingByDesk(ctx, deskID)
		if err != nil && !errors.Is(err, dberror.ErrNotFound) {
			return err
		}
		if existing != nil && existing.UserID != userID {
			return ErrDeskOccupied.Msg("occupied_by:" + existing.UserID)
		}

		booking, err := store.FindLiveBooking(ctx, deskID, now)
		if err != nil && !errors.Is(err, dberror.ErrNotFound) {
			return err
		}
		if booking != nil && booking.UserID != userID {
			return ErrDeskBooked.Msg("booked")
		}

		prior, err := store.FindOpenPairingByUser(ctx, userID)
		if err != nil && !errors.Is(err, dberror.ErrNotFound) {
			return err
		}
		if prior != nil {
			if err := store.ClosePairing(ctx, prior.SessionID, now); err != nil {
				return err
			}
			log.Ctx(ctx).Info().
				Str("user_id", userID).
				Str("prior_desk_id", prior.DeskID).
				Msg("closed prior pairing")
		}

		created = &models.Session{
			Kind:      models.SessionKindPairing,
			UserID:    userID,
			DeskID:    deskID,
			StartTime: now,
		}
		return store.CreatePairing(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Unpair closes the user's open pairing. Fails with ErrNoActivePairing if
// the user holds none.
func (c *Coordinator) Unpair(ctx context.Context, userID string) (*models.Session, apperrors.Error) {
	store := db.GetStore(ctx)
	if store == nil {
		return nil, ErrOccupancy.Msg("no session store")
	}

	pairing, err := store.FindOpenPairingByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, ErrNoActivePairing
		}
		return nil, err
	}

	now := c.now()
	err = store.WithDeskLock(ctx, pairing.DeskID, func(ctx context.Context) apperrors.Error {
		if err := store.ClosePairing(ctx, pairing.SessionID, now); err != nil {
			if errors.Is(err, dberror.ErrNotFound) {
				return ErrNoActivePairing
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	pairing.EndTime = &now
	return pairing, nil
}

// ForceUnpair closes whichever pairing is open on the desk, regardless of
// owner. Privilege is checked by the caller.
func (c *Coordinator) ForceUnpair(ctx context.Context, deskID string) (*models.Session, apperrors.Error) {
	store := db.GetStore(ctx)
	if store == nil {
		return nil, ErrOccupancy.Msg("no session store")
	}
	now := c.now()

	var closed *models.Session
	err := store.WithDeskLock(ctx, deskID, func(ctx context.Context) apperrors.Error {
		pairing, err := store.FindOpenPairingByDesk(ctx, deskID)
		if err != nil {
			if errors.Is(err, dberror.ErrNotFound) {
				return ErrNoActivePairing
			}
			return err
		}
		if err := store.ClosePairing(ctx, pairing.SessionID, now); err != nil {
			return err
		}
		pairing.EndTime = &now
		closed = pairing
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().
		Str("desk_id", deskID).
		Str("user_id", closed.UserID).
		Msg("pairing force closed")
	return closed, nil
}

// Book reserves the desk for [start, end). Fails with ErrInvalidTimeRange
// unless start precedes end, and with ErrBookingOverlap if an existing
// booking's half-open window intersects the requested one. Touching
// endpoints do not conflict.
func (c *Coordinator) Book(ctx context.Context, userID, deskID string, start, end time.Time) (*models.Session, apperrors.Error) {
	if !start.Before(end) {
		return nil, ErrInvalidTimeRange
	}
	store := db.GetStore(ctx)
	if store == nil {
		return nil, ErrOccupancy.Msg("no session store")
	}

	var created *models.Session
	err := store.WithDeskLock(ctx, deskID, func(ctx context.Context) apperrors.Error {
		existing, err := store.FindOverlappingBooking(ctx, deskID, start, end)
		if err != nil && !errors.Is(err, dberror.ErrNotFound) {
			return err
		}
		if existing != nil {
			return ErrBookingOverlap
		}

		endTime := end
		created = &models.Session{
			Kind:      models.SessionKindBooking,
			UserID:    userID,
			DeskID:    deskID,
			StartTime: start,
			EndTime:   &endTime,
		}
		return store.CreateBooking(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
