package circulation

import (
	"context"

	"library_catalog/pkg/models"
	"library_catalog/pkg/store"
)

type ReservationQuery struct {
	Status      models.ReservationStatus
	CustomerUid string
	BookUid     string
	Page        int
	Size        int
}

// GetReservation returns a reservation with its book and customer.
func (s *Service) GetReservation(ctx context.Context, reservationUid string) (ReservationView, error) {
	r, err := s.reservations.FindByID(ctx, reservationUid)
	if err != nil {
		return ReservationView{}, err
	}
	views, err := s.populate(ctx, []models.Reservation{r})
	if err != nil {
		return ReservationView{}, err
	}
	return views[0], nil
}

func (s *Service) ListReservations(ctx context.Context, q ReservationQuery) ([]ReservationView, int64, error) {
	var filters []store.Scope
	if q.Status != "" {
		filters = append(filters, store.Eq("status", q.Status))
	}
	if q.CustomerUid != "" {
		filters = append(filters, store.Eq("customer_uid", q.CustomerUid))
	}
	if q.BookUid != "" {
		filters = append(filters, store.Eq("book_uid", q.BookUid))
	}
	total, err := s.reservations.CountWhere(ctx, filters...)
	if err != nil {
		return nil, 0, err
	}
	page := append(filters, store.OrderBy("created_at DESC, id DESC"), store.Page(q.Page, q.Size))
	reservations, err := s.reservations.Find(ctx, page...)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.populate(ctx, reservations)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// populate attaches books and customers to reservation views. References that no
// longer resolve are left empty.
func (s *Service) populate(ctx context.Context, reservations []models.Reservation) ([]ReservationView, error) {
	now := s.clock()
	views := make([]ReservationView, len(reservations))
	if len(reservations) == 0 {
		return views, nil
	}
	bookUids := make([]string, 0, len(reservations))
	customerUids := make([]string, 0, len(reservations))
	for _, r := range reservations {
		bookUids = append(bookUids, r.BookUid)
		customerUids = append(customerUids, r.CustomerUid)
	}
	books, err := s.books.Find(ctx, store.In("book_uid", bookUids))
	if err != nil {
		return nil, err
	}
	customers, err := s.customers.Find(ctx, store.In("customer_uid", customerUids))
	if err != nil {
		return nil, err
	}
	bookByUid := make(map[string]models.Book, len(books))
	for _, b := range books {
		bookByUid[b.BookUid] = b
	}
	customerByUid := make(map[string]CustomerView, len(customers))
	for _, c := range customers {
		customerByUid[c.CustomerUid] = NewCustomerView(c)
	}
	for i, r := range reservations {
		views[i] = NewReservationView(r, now)
		if b, ok := bookByUid[r.BookUid]; ok {
			views[i].Book = &b
		}
		if c, ok := customerByUid[r.CustomerUid]; ok {
			views[i].Customer = &c
		}
	}
	return views, nil
}
