package circulation

import (
	"context"
	"fmt"

	"library_catalog/pkg/models"
	"library_catalog/pkg/store"

	"gorm.io/gorm"
)

// Summary is the read-only dashboard rollup.
type Summary struct {
	TotalBooks          int64             `json:"totalBooks"`
	AvailableBooks      int64             `json:"availableBooks"`
	TotalCustomers      int64             `json:"totalCustomers"`
	ActiveReservations  int64             `json:"activeReservations"`
	OverdueReservations int64             `json:"overdueReservations"`
	UpcomingDue         []ReservationView `json:"upcomingDue"`
	RecentBooks         []BookView        `json:"recentBooks"`
}

func (s *Service) Dashboard(ctx context.Context) (Summary, error) {
	now := s.clock()
	var sum Summary
	var err error

	if sum.TotalBooks, err = s.books.CountWhere(ctx); err != nil {
		return Summary{}, fmt.Errorf("count books: %w", err)
	}
	if sum.AvailableBooks, err = s.books.CountWhere(ctx, s.hasFreeCopy()); err != nil {
		return Summary{}, fmt.Errorf("count available books: %w", err)
	}
	if sum.TotalCustomers, err = s.customers.CountWhere(ctx); err != nil {
		return Summary{}, fmt.Errorf("count customers: %w", err)
	}
	if sum.ActiveReservations, err = s.reservations.CountWhere(ctx, store.In("status", HeldStatuses)); err != nil {
		return Summary{}, fmt.Errorf("count active reservations: %w", err)
	}
	if sum.OverdueReservations, err = s.reservations.CountWhere(ctx, store.Eq("status", models.StatusOverdue)); err != nil {
		return Summary{}, fmt.Errorf("count overdue reservations: %w", err)
	}

	upcoming, err := s.reservations.Find(ctx,
		store.In("status", HeldStatuses),
		store.Between("due_date", now, now.Add(s.policy.DueSoonWindow)),
		store.OrderBy("due_date ASC"),
		store.Limit(s.policy.UpcomingLimit),
	)
	if err != nil {
		return Summary{}, fmt.Errorf("load upcoming due reservations: %w", err)
	}
	if sum.UpcomingDue, err = s.populate(ctx, upcoming); err != nil {
		return Summary{}, err
	}

	recent, err := s.books.Find(ctx, store.OrderBy("created_at DESC, id DESC"), store.Limit(s.policy.RecentLimit))
	if err != nil {
		return Summary{}, fmt.Errorf("load recent books: %w", err)
	}
	uids := make([]string, len(recent))
	for i, b := range recent {
		uids[i] = b.BookUid
	}
	counts, err := s.activeCounts(ctx, uids)
	if err != nil {
		return Summary{}, err
	}
	sum.RecentBooks = make([]BookView, len(recent))
	for i, b := range recent {
		sum.RecentBooks[i] = NewBookView(b, counts[b.BookUid])
	}
	return sum, nil
}

// hasFreeCopy matches books whose quantity exceeds their active reservation count.
func (s *Service) hasFreeCopy() store.Scope {
	return func(db *gorm.DB) *gorm.DB {
		active := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.Reservation{}).
			Select("COUNT(*)").
			Where("reservations.book_uid = books.book_uid AND reservations.status IN ?", ActiveStatuses)
		return db.Where("books.quantity > (?)", active)
	}
}
