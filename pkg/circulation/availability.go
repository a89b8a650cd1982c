package circulation

import (
	"context"
	"fmt"

	"library_catalog/pkg/models"
	"library_catalog/pkg/store"
)

type Availability string

const (
	Unavailable Availability = "unavailable"
	Limited     Availability = "limited"
	Available   Availability = "available"
)

// AvailableQuantity is the number of copies of book not held by an active reservation.
func AvailableQuantity(book models.Book, activeReservations int64) int {
	return book.Quantity - int(activeReservations)
}

func IsAvailable(book models.Book, activeReservations int64) bool {
	return AvailableQuantity(book, activeReservations) > 0
}

func AvailabilityStatus(book models.Book, activeReservations int64) Availability {
	available := AvailableQuantity(book, activeReservations)
	switch {
	case available <= 0:
		return Unavailable
	case available <= 2:
		return Limited
	default:
		return Available
	}
}

func countActive(ctx context.Context, reservations *store.Collection[models.Reservation], bookUid string) (int64, error) {
	n, err := reservations.CountWhere(ctx, store.Eq("book_uid", bookUid), store.In("status", ActiveStatuses))
	if err != nil {
		return 0, fmt.Errorf("count active reservations for book %s: %w", bookUid, err)
	}
	return n, nil
}

// activeCounts returns the active reservation count per book uid in one grouped query.
func (s *Service) activeCounts(ctx context.Context, bookUids []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(bookUids))
	if len(bookUids) == 0 {
		return counts, nil
	}
	var rows []struct {
		BookUid string
		Count   int64
	}
	err := s.db.WithContext(ctx).Model(&models.Reservation{}).
		Select("book_uid, COUNT(*) AS count").
		Where("book_uid IN ? AND status IN ?", bookUids, ActiveStatuses).
		Group("book_uid").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count active reservations: %w", err)
	}
	for _, row := range rows {
		counts[row.BookUid] = row.Count
	}
	return counts, nil
}

// AvailableQuantityOf looks up book and computes its current available quantity.
func (s *Service) AvailableQuantityOf(ctx context.Context, bookUid string) (int, error) {
	book, err := s.books.FindByID(ctx, bookUid)
	if err != nil {
		return 0, err
	}
	active, err := countActive(ctx, s.reservations, bookUid)
	if err != nil {
		return 0, err
	}
	return AvailableQuantity(book, active), nil
}
