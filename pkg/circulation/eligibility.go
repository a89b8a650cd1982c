package circulation

import (
	"context"
	"fmt"

	"library_catalog/pkg/models"
	"library_catalog/pkg/store"

	"gorm.io/gorm"
)

// IsEligible reports whether customer may take a new reservation.
// Lookup failures count as ineligible.
func (s *Service) IsEligible(ctx context.Context, customer models.Customer) bool {
	return s.checkEligibility(ctx, s.reservations, customer, "") == nil
}

// checkEligibility returns nil when customer may hold another reservation. The
// reservation named by exclude, if any, is left out of the limit count so an
// existing loan can be renewed at the limit.
func (s *Service) checkEligibility(ctx context.Context, reservations *store.Collection[models.Reservation], customer models.Customer, exclude string) error {
	if customer.Status != models.CustomerActive {
		return fmt.Errorf("%w: customer %s is %s", ErrNotEligible, customer.CustomerUid, customer.Status)
	}

	scopes := []store.Scope{store.Eq("customer_uid", customer.CustomerUid), store.In("status", HeldStatuses)}
	if exclude != "" {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("reservation_uid <> ?", exclude)
		})
	}
	held, err := reservations.CountWhere(ctx, scopes...)
	if err != nil {
		s.log.WithError(err).WithField("customer", customer.CustomerUid).Warn("eligibility lookup failed")
		return fmt.Errorf("%w: eligibility lookup failed", ErrNotEligible)
	}
	if held >= int64(customer.MaxReservations) {
		return fmt.Errorf("%w: customer %s holds %d of %d reservations", ErrNotEligible, customer.CustomerUid, held, customer.MaxReservations)
	}

	blocking, err := reservations.CountWhere(ctx,
		store.Eq("customer_uid", customer.CustomerUid),
		store.Eq("status", models.StatusOverdue),
		store.Eq("fine_paid", false),
	)
	if err != nil {
		s.log.WithError(err).WithField("customer", customer.CustomerUid).Warn("eligibility lookup failed")
		return fmt.Errorf("%w: eligibility lookup failed", ErrNotEligible)
	}
	if blocking > 0 {
		return fmt.Errorf("%w: customer %s has overdue books with unpaid fines", ErrNotEligible, customer.CustomerUid)
	}

	// Loans past due that the sweep has not reached yet.
	late, err := reservations.CountWhere(ctx,
		store.Eq("customer_uid", customer.CustomerUid),
		store.In("status", HeldStatuses),
		store.Before("due_date", s.clock()),
		store.IsNull("return_date"),
	)
	if err != nil {
		s.log.WithError(err).WithField("customer", customer.CustomerUid).Warn("eligibility lookup failed")
		return fmt.Errorf("%w: eligibility lookup failed", ErrNotEligible)
	}
	if late > 0 {
		return fmt.Errorf("%w: customer %s has overdue books", ErrNotEligible, customer.CustomerUid)
	}
	return nil
}
