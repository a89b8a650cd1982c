package circulation

import (
	"context"
	"fmt"
	"strings"

	"library_catalog/pkg/models"
	"library_catalog/pkg/store"
)

type BookPatch struct {
	Title       *string
	Author      *string
	ISBN        *string
	Quantity    *int
	Description *string
	Year        *int
	Genre       *string
	Publisher   *string
	PageCount   *int
	CoverURL    *string
	Subjects    []string
}

type BookQuery struct {
	Search string
	Page   int
	Size   int
}

// CreateBook validates and stores a book. Catalog metadata is filled in from the
// enricher when one is configured; enrichment failure never blocks the insert.
func (s *Service) CreateBook(ctx context.Context, book models.Book) (BookView, error) {
	book.ISBN = NormalizeISBN(book.ISBN)
	book.Title = strings.TrimSpace(book.Title)
	book.Author = strings.TrimSpace(book.Author)
	book.ID, book.BookUid, book.Version, book.EnrichedAt = 0, "", 0, nil
	if err := validateStruct(book); err != nil {
		return BookView{}, err
	}

	enriched := true
	if s.enricher != nil {
		if err := s.enricher.Enrich(ctx, &book); err != nil {
			enriched = false
			s.log.WithError(err).WithField("isbn", book.ISBN).Warn("catalog enrichment failed, saving book without it")
		}
	}

	if _, err := s.books.Insert(ctx, &book); err != nil {
		return BookView{}, err
	}
	if !enriched {
		s.enricher.ScheduleRetry(book.BookUid, book.ISBN)
	}
	s.log.WithField("book", book.BookUid).Info("book added to catalog")
	return NewBookView(book, 0), nil
}

func (s *Service) GetBook(ctx context.Context, bookUid string) (BookView, error) {
	book, err := s.books.FindByID(ctx, bookUid)
	if err != nil {
		return BookView{}, err
	}
	active, err := countActive(ctx, s.reservations, bookUid)
	if err != nil {
		return BookView{}, err
	}
	return NewBookView(book, active), nil
}

// ListBooks returns one page of the catalog, newest first, with availability, plus the total match count.
func (s *Service) ListBooks(ctx context.Context, q BookQuery) ([]BookView, int64, error) {
	filter := store.Search(q.Search, "title", "author", "isbn")
	total, err := s.books.CountWhere(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	books, err := s.books.Find(ctx, filter, store.OrderBy("created_at DESC, id DESC"), store.Page(q.Page, q.Size))
	if err != nil {
		return nil, 0, err
	}
	uids := make([]string, len(books))
	for i, b := range books {
		uids[i] = b.BookUid
	}
	counts, err := s.activeCounts(ctx, uids)
	if err != nil {
		return nil, 0, err
	}
	views := make([]BookView, len(books))
	for i, b := range books {
		views[i] = NewBookView(b, counts[b.BookUid])
	}
	return views, total, nil
}

// UpdateBook edits a book. Quantity may not drop below the copies currently reserved.
func (s *Service) UpdateBook(ctx context.Context, bookUid string, patch BookPatch) (BookView, error) {
	var view BookView
	err := s.inTx(ctx, func(books *store.Collection[models.Book], _ *store.Collection[models.Customer], reservations *store.Collection[models.Reservation]) error {
		book, err := books.FindByID(ctx, bookUid)
		if err != nil {
			return err
		}
		updated := applyBookPatch(book, patch)
		if err := validateStruct(updated); err != nil {
			return err
		}
		active, err := countActive(ctx, reservations, bookUid)
		if err != nil {
			return err
		}
		if int64(updated.Quantity) < active {
			return invalidField("quantity", fmt.Sprintf("cannot be below the %d copies currently reserved", active))
		}
		n, err := books.UpdateWhere(ctx, bookUid, map[string]interface{}{
			"title":       updated.Title,
			"author":      updated.Author,
			"isbn":        updated.ISBN,
			"quantity":    updated.Quantity,
			"description": updated.Description,
			"year":        updated.Year,
			"genre":       updated.Genre,
			"publisher":   updated.Publisher,
			"page_count":  updated.PageCount,
			"cover_url":   updated.CoverURL,
			"subjects":    updated.Subjects,
			"version":     book.Version + 1,
		}, store.Eq("version", book.Version))
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: book %s was modified concurrently", ErrConflict, bookUid)
		}
		saved, err := books.FindByID(ctx, bookUid)
		if err != nil {
			return err
		}
		view = NewBookView(saved, active)
		return nil
	})
	return view, err
}

func applyBookPatch(b models.Book, p BookPatch) models.Book {
	if p.Title != nil {
		b.Title = strings.TrimSpace(*p.Title)
	}
	if p.Author != nil {
		b.Author = strings.TrimSpace(*p.Author)
	}
	if p.ISBN != nil {
		b.ISBN = NormalizeISBN(*p.ISBN)
	}
	if p.Quantity != nil {
		b.Quantity = *p.Quantity
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Year != nil {
		b.Year = *p.Year
	}
	if p.Genre != nil {
		b.Genre = *p.Genre
	}
	if p.Publisher != nil {
		b.Publisher = *p.Publisher
	}
	if p.PageCount != nil {
		b.PageCount = *p.PageCount
	}
	if p.CoverURL != nil {
		b.CoverURL = *p.CoverURL
	}
	if p.Subjects != nil {
		b.Subjects = strings.Join(p.Subjects, ",")
	}
	return b
}

// DeleteBook removes a book that no active reservation refers to.
func (s *Service) DeleteBook(ctx context.Context, bookUid string) error {
	return s.inTx(ctx, func(books *store.Collection[models.Book], _ *store.Collection[models.Customer], reservations *store.Collection[models.Reservation]) error {
		book, err := books.FindByID(ctx, bookUid)
		if err != nil {
			return err
		}
		active, err := countActive(ctx, reservations, bookUid)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: book %s has %d active reservations", ErrConflict, bookUid, active)
		}
		deleted, err := books.Delete(ctx, bookUid, store.Eq("version", book.Version))
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: book %s was modified concurrently", ErrConflict, bookUid)
		}
		s.log.WithField("book", bookUid).Info("book removed from catalog")
		return nil
	})
}
