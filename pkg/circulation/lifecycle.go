package circulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"library_catalog/pkg/metrics"
	"library_catalog/pkg/models"
	"library_catalog/pkg/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CreateReservationRequest struct {
	BookUid     string
	CustomerUid string
	// DueDate overrides the default loan period when set.
	DueDate *time.Time
	Notes   string
}

// CreateReservation reserves a copy of a book for a customer.
func (s *Service) CreateReservation(ctx context.Context, req CreateReservationRequest) (models.Reservation, error) {
	var created models.Reservation
	err := retryOnConflict(ctx, func(ctx context.Context) error {
		r, err := s.createReservation(ctx, req)
		created = r
		return err
	})
	s.observe("create", created.ReservationUid, err)
	return created, err
}

func (s *Service) createReservation(ctx context.Context, req CreateReservationRequest) (models.Reservation, error) {
	now := s.clock()
	due := now.Add(s.policy.LoanPeriod)
	if req.DueDate != nil {
		if !req.DueDate.After(now) {
			return models.Reservation{}, invalidField("dueDate", "must be in the future")
		}
		due = req.DueDate.UTC()
	}
	if len(req.Notes) > 300 {
		return models.Reservation{}, invalidField("notes", "failed on max=300")
	}

	var reservation models.Reservation
	err := s.inTx(ctx, func(books *store.Collection[models.Book], customers *store.Collection[models.Customer], reservations *store.Collection[models.Reservation]) error {
		book, err := books.FindByID(ctx, req.BookUid)
		if err != nil {
			return err
		}
		active, err := countActive(ctx, reservations, book.BookUid)
		if err != nil {
			return err
		}
		if !IsAvailable(book, active) {
			return fmt.Errorf("%w: %q has %d copies, %d reserved", ErrUnavailable, book.Title, book.Quantity, active)
		}

		customer, err := customers.FindByID(ctx, req.CustomerUid)
		if err != nil {
			return err
		}
		if err := s.checkEligibility(ctx, reservations, customer, ""); err != nil {
			return err
		}

		// Bumping both versions serializes creates per book and per customer:
		// a concurrent create that read the same versions matches no row.
		if err := bumpVersion(ctx, books, book.BookUid, book.Version); err != nil {
			return err
		}
		if err := bumpVersion(ctx, customers, customer.CustomerUid, customer.Version); err != nil {
			return err
		}

		reservation = models.Reservation{
			BookUid:         book.BookUid,
			CustomerUid:     customer.CustomerUid,
			ReservationDate: now,
			DueDate:         due,
			Status:          models.StatusReserved,
			Notes:           req.Notes,
		}
		_, err = reservations.Insert(ctx, &reservation)
		return err
	})
	if err != nil {
		return models.Reservation{}, err
	}
	return reservation, nil
}

func bumpVersion[T any](ctx context.Context, c *store.Collection[T], uid string, version int) error {
	n, err := c.UpdateWhere(ctx, uid, map[string]interface{}{"version": version + 1}, store.Eq("version", version))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s changed while reserving", ErrConflict, uid)
	}
	return nil
}

// Borrow records that a reserved copy was picked up.
func (s *Service) Borrow(ctx context.Context, reservationUid string) (models.Reservation, error) {
	r, err := s.borrow(ctx, reservationUid)
	s.observe("borrow", reservationUid, err)
	return r, err
}

func (s *Service) borrow(ctx context.Context, reservationUid string) (models.Reservation, error) {
	r, err := s.reservations.FindByID(ctx, reservationUid)
	if err != nil {
		return r, err
	}
	next, err := Transition(EffectiveStatus(r, s.clock()), EventBorrow)
	if err != nil {
		return r, err
	}
	return s.apply(ctx, r, map[string]interface{}{"status": next})
}

// Renew extends the due date of a reserved or borrowed copy by one renewal period.
func (s *Service) Renew(ctx context.Context, reservationUid string) (models.Reservation, error) {
	r, err := s.renew(ctx, reservationUid)
	s.observe("renew", reservationUid, err)
	return r, err
}

func (s *Service) renew(ctx context.Context, reservationUid string) (models.Reservation, error) {
	r, err := s.reservations.FindByID(ctx, reservationUid)
	if err != nil {
		return r, err
	}
	if _, err := Transition(EffectiveStatus(r, s.clock()), EventRenew); err != nil {
		return r, err
	}
	if r.RenewalCount >= s.policy.MaxRenewals {
		return r, fmt.Errorf("%w: reservation %s renewed %d times", ErrRenewalLimitExceeded, r.ReservationUid, r.RenewalCount)
	}
	customer, err := s.customers.FindByID(ctx, r.CustomerUid)
	if err != nil {
		return r, err
	}
	if err := s.checkEligibility(ctx, s.reservations, customer, r.ReservationUid); err != nil {
		return r, err
	}
	return s.apply(ctx, r, map[string]interface{}{
		"due_date":      r.DueDate.Add(s.policy.RenewalPeriod),
		"renewal_count": r.RenewalCount + 1,
	})
}

// Return closes a reservation. An overdue reservation is charged a fine of
// FinePerDay for every started day past its due date.
func (s *Service) Return(ctx context.Context, reservationUid string) (models.Reservation, error) {
	r, err := s.returnCopy(ctx, reservationUid)
	s.observe("return", reservationUid, err)
	return r, err
}

func (s *Service) returnCopy(ctx context.Context, reservationUid string) (models.Reservation, error) {
	r, err := s.reservations.FindByID(ctx, reservationUid)
	if err != nil {
		return r, err
	}
	now := s.clock()
	from := EffectiveStatus(r, now)
	next, err := Transition(from, EventReturn)
	if err != nil {
		return r, err
	}
	patch := map[string]interface{}{
		"status":      next,
		"return_date": now,
	}
	if from == models.StatusOverdue {
		days := DaysOverdue(r.DueDate, now)
		patch["fine_amount"] = float64(days) * s.policy.FinePerDay
		patch["fine_paid"] = false
		patch["fine_reason"] = fmt.Sprintf("Overdue by %d days", days)
	}
	return s.apply(ctx, r, patch)
}

// Cancel withdraws a reservation that has not been returned.
func (s *Service) Cancel(ctx context.Context, reservationUid string) (models.Reservation, error) {
	r, err := s.cancel(ctx, reservationUid)
	s.observe("cancel", reservationUid, err)
	return r, err
}

func (s *Service) cancel(ctx context.Context, reservationUid string) (models.Reservation, error) {
	r, err := s.reservations.FindByID(ctx, reservationUid)
	if err != nil {
		return r, err
	}
	next, err := Transition(r.Status, EventCancel)
	if err != nil {
		return r, err
	}
	return s.apply(ctx, r, map[string]interface{}{"status": next})
}

// PayFine settles the fine attached to a reservation.
func (s *Service) PayFine(ctx context.Context, reservationUid string) (models.Reservation, error) {
	r, err := s.payFine(ctx, reservationUid)
	s.observe("pay_fine", reservationUid, err)
	return r, err
}

func (s *Service) payFine(ctx context.Context, reservationUid string) (models.Reservation, error) {
	r, err := s.reservations.FindByID(ctx, reservationUid)
	if err != nil {
		return r, err
	}
	if r.Fine.Amount <= 0 || r.Fine.Paid {
		return r, invalidField("fine", "no unpaid fine on reservation")
	}
	return s.apply(ctx, r, map[string]interface{}{"fine_paid": true})
}

// MarkOverdue moves every held reservation past its due date to overdue and
// reports how many it moved. Running it again changes nothing.
func (s *Service) MarkOverdue(ctx context.Context) (int64, error) {
	now := s.clock()
	n, err := s.reservations.UpdateAll(ctx,
		map[string]interface{}{
			"status":  models.StatusOverdue,
			"version": gorm.Expr("version + 1"),
		},
		store.In("status", SourcesOf(EventMarkOverdue)),
		store.Before("due_date", now),
		store.IsNull("return_date"),
	)
	if err != nil {
		metrics.ObserveReservationOp("mark_overdue", Kind(err))
		return 0, fmt.Errorf("mark overdue reservations: %w", err)
	}
	metrics.ObserveReservationOp("mark_overdue", "ok")
	metrics.ObserveSweep(n, now)
	s.log.WithField("marked", n).Info("overdue sweep finished")
	return n, nil
}

// apply writes patch only if r is still in the status and version it was read at.
func (s *Service) apply(ctx context.Context, r models.Reservation, patch map[string]interface{}) (models.Reservation, error) {
	patch["version"] = r.Version + 1
	n, err := s.reservations.UpdateWhere(ctx, r.ReservationUid, patch,
		store.Eq("status", r.Status),
		store.Eq("version", r.Version),
	)
	if err != nil {
		return r, err
	}
	if n == 0 {
		return r, fmt.Errorf("%w: reservation %s was modified concurrently, reload and retry", ErrConflict, r.ReservationUid)
	}
	return s.reservations.FindByID(ctx, r.ReservationUid)
}

func (s *Service) observe(op, reservationUid string, err error) {
	kind := Kind(err)
	metrics.ObserveReservationOp(op, kind)
	entry := s.log.WithFields(logrus.Fields{"operation": op, "reservation": reservationUid})
	switch {
	case err == nil:
		entry.Info("reservation updated")
	case kind == "internal" && !errors.Is(err, context.Canceled):
		entry.WithError(err).Error("reservation operation failed")
	default:
		entry.WithError(err).Debug("reservation operation rejected")
	}
}

// DaysOverdue counts started days between due and now, or zero when now is not past due.
func DaysOverdue(due, now time.Time) int {
	if !now.After(due) {
		return 0
	}
	return int(math.Ceil(float64(now.Sub(due)) / float64(day)))
}

// LoanDuration counts started days from the reservation date to its return, or to now while open.
func LoanDuration(r models.Reservation, now time.Time) int {
	end := now
	if r.ReturnDate != nil {
		end = *r.ReturnDate
	}
	if !end.After(r.ReservationDate) {
		return 0
	}
	return int(math.Ceil(float64(end.Sub(r.ReservationDate)) / float64(day)))
}
