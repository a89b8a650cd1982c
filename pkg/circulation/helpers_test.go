package circulation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"library_catalog/pkg/database"
	"library_catalog/pkg/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func setupService(t *testing.T, opts ...Option) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{now: t0}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewService(setupTestDB(t), opts...), clock
}

var isbnSeq int

func addBook(t *testing.T, s *Service, quantity int) BookView {
	t.Helper()
	isbnSeq++
	book, err := s.CreateBook(context.Background(), models.Book{
		Title:    fmt.Sprintf("Book %d", isbnSeq),
		Author:   "Test Author",
		ISBN:     fmt.Sprintf("978%010d", isbnSeq),
		Quantity: quantity,
	})
	require.NoError(t, err)
	return book
}

var emailSeq int

func addCustomer(t *testing.T, s *Service, maxReservations int) CustomerView {
	t.Helper()
	emailSeq++
	c, err := s.CreateCustomer(context.Background(), models.Customer{
		FirstName:       "Ada",
		LastName:        fmt.Sprintf("Reader%d", emailSeq),
		Email:           fmt.Sprintf("reader%d@example.com", emailSeq),
		MaxReservations: maxReservations,
	})
	require.NoError(t, err)
	return c
}

func reserve(t *testing.T, s *Service, bookUid, customerUid string) models.Reservation {
	t.Helper()
	r, err := s.CreateReservation(context.Background(), CreateReservationRequest{BookUid: bookUid, CustomerUid: customerUid})
	require.NoError(t, err)
	return r
}
