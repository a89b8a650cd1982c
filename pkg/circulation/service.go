// Package circulation holds the library's reservation lifecycle: availability of
// copies, customer eligibility, the reservation state machine and fine accrual,
// together with the catalog operations that must respect it.
package circulation

import (
	"context"
	"time"

	"library_catalog/pkg/models"
	"library_catalog/pkg/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const day = 24 * time.Hour

type Policy struct {
	LoanPeriod    time.Duration
	RenewalPeriod time.Duration
	MaxRenewals   int
	FinePerDay    float64
	DueSoonWindow time.Duration
	UpcomingLimit int
	RecentLimit   int
}

func DefaultPolicy() Policy {
	return Policy{
		LoanPeriod:    14 * day,
		RenewalPeriod: 14 * day,
		MaxRenewals:   3,
		FinePerDay:    1,
		DueSoonWindow: 7 * day,
		UpcomingLimit: 5,
		RecentLimit:   6,
	}
}

// Enricher fills catalog metadata for a new book. Failures are never fatal to book creation.
type Enricher interface {
	Enrich(ctx context.Context, book *models.Book) error
	ScheduleRetry(bookUid, isbn string)
}

type Service struct {
	db           *gorm.DB
	books        *store.Collection[models.Book]
	customers    *store.Collection[models.Customer]
	reservations *store.Collection[models.Reservation]
	policy       Policy
	now          func() time.Time
	enricher     Enricher
	log          *logrus.Entry
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithEnricher(e Enricher) Option {
	return func(s *Service) { s.enricher = e }
}

func WithLogger(l *logrus.Entry) Option {
	return func(s *Service) { s.log = l }
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:           db,
		books:        store.NewBooks(db),
		customers:    store.NewCustomers(db),
		reservations: store.NewReservations(db),
		policy:       DefaultPolicy(),
		now:          time.Now,
		log:          logrus.WithField("component", "circulation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() Policy {
	return s.policy
}

// Now is the service clock in UTC. Derived reservation fields are computed against it.
func (s *Service) Now() time.Time {
	return s.clock()
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// inTx runs fn with collections bound to one transaction.
func (s *Service) inTx(ctx context.Context, fn func(books *store.Collection[models.Book], customers *store.Collection[models.Customer], reservations *store.Collection[models.Reservation]) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.books.WithTx(tx), s.customers.WithTx(tx), s.reservations.WithTx(tx))
	})
}
