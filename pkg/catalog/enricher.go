package catalog

import (
	"context"
	"errors"
	"time"

	"library_catalog/pkg/metrics"
	"library_catalog/pkg/models"
	"library_catalog/pkg/queue"
	"library_catalog/pkg/store"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	DefaultMaxAttempts = 5
	defaultRetryDelay  = time.Minute
)

// Lookup finds edition metadata by ISBN. *Client implements it.
type Lookup interface {
	LookupByISBN(ctx context.Context, isbn string) (*Metadata, error)
}

// Enricher fills book metadata on creation and keeps retrying books whose
// lookup failed until the attempts run out.
type Enricher struct {
	lookup      Lookup
	books       *store.Collection[models.Book]
	retries     *queue.Queue[string]
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
	log         *logrus.Entry
}

type EnricherOption func(*Enricher)

func WithRetryDelay(d time.Duration) EnricherOption {
	return func(e *Enricher) { e.retryDelay = d }
}

func WithMaxAttempts(n int) EnricherOption {
	return func(e *Enricher) { e.maxAttempts = n }
}

func WithEnricherClock(now func() time.Time) EnricherOption {
	return func(e *Enricher) { e.now = now }
}

func NewEnricher(lookup Lookup, db *gorm.DB, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		lookup:      lookup,
		books:       store.NewBooks(db),
		retries:     queue.NewQueue[string](),
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		now:         time.Now,
		log:         logrus.WithField("component", "enricher"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich fills the empty metadata fields of book in place. A book Open Library
// does not know is left as is and is not an error.
func (e *Enricher) Enrich(ctx context.Context, book *models.Book) error {
	md, err := e.lookup.LookupByISBN(ctx, book.ISBN)
	if err != nil {
		return err
	}
	if md == nil {
		return nil
	}
	md.Fill(book, e.now().UTC())
	return nil
}

// ScheduleRetry queues bookUid for another lookup of isbn after the first failed.
func (e *Enricher) ScheduleRetry(bookUid, isbn string) {
	e.retries.Enqueue(&queue.RetryRequest[string]{
		Key:        bookUid,
		Payload:    isbn,
		RetryAt:    e.now().Add(e.retryDelay),
		RetryCount: 1,
		MaxRetries: e.maxAttempts,
	})
	metrics.SetRetryQueueSize(e.retries.Size())
}

func (e *Enricher) Pending() []queue.RetryRequest[string] {
	return e.retries.GetAll()
}

// ProcessRetries attempts every due lookup once and reports how many books were enriched.
func (e *Enricher) ProcessRetries(ctx context.Context) (int, error) {
	now := e.now()
	enriched := 0
	defer func() { metrics.SetRetryQueueSize(e.retries.Size()) }()

	for _, req := range e.retries.DrainDue(now) {
		if err := ctx.Err(); err != nil {
			e.retries.Enqueue(req)
			return enriched, err
		}
		entry := e.log.WithFields(logrus.Fields{"book": req.Key, "isbn": req.Payload, "attempt": req.RetryCount + 1})

		md, err := e.lookup.LookupByISBN(ctx, req.Payload)
		if err != nil {
			req.RetryCount++
			req.LastError = err.Error()
			if req.Exhausted() {
				entry.WithError(err).Warn("giving up on catalog enrichment")
				continue
			}
			req.RetryAt = now.Add(e.retryDelay * time.Duration(1<<(req.RetryCount-1)))
			e.retries.Enqueue(req)
			entry.WithError(err).Debug("catalog enrichment retry failed")
			continue
		}
		if md == nil {
			entry.Info("isbn unknown to open library, nothing to enrich")
			continue
		}

		ok, err := e.apply(ctx, req.Key, *md)
		switch {
		case errors.Is(err, store.ErrNotFound):
			entry.Info("book removed before enrichment")
		case err != nil:
			return enriched, err
		case !ok:
			// The book changed underneath; try again on the next run.
			req.RetryAt = now
			e.retries.Enqueue(req)
		default:
			enriched++
			entry.Info("book enriched from open library")
		}
	}
	return enriched, nil
}

func (e *Enricher) apply(ctx context.Context, bookUid string, md Metadata) (bool, error) {
	book, err := e.books.FindByID(ctx, bookUid)
	if err != nil {
		return false, err
	}
	patch := md.Fill(&book, e.now().UTC())
	patch["version"] = book.Version + 1
	n, err := e.books.UpdateWhere(ctx, bookUid, patch, store.Eq("version", book.Version))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
