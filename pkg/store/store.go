// Package store is the entity store shared by the library's book, customer and
// reservation collections. Records are addressed by their external UUID.
package store

import (
	"context"
	"errors"
	"fmt"

	"library_catalog/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// Scope narrows a query. Scopes compose the same way gorm scopes do.
type Scope = func(*gorm.DB) *gorm.DB

type Collection[T any] struct {
	db     *gorm.DB
	name   string
	uidCol string
	setUID func(*T) string
}

func NewBooks(db *gorm.DB) *Collection[models.Book] {
	return &Collection[models.Book]{db: db, name: "book", uidCol: "book_uid", setUID: func(b *models.Book) string {
		if b.BookUid == "" {
			b.BookUid = uuid.New().String()
		}
		return b.BookUid
	}}
}

func NewCustomers(db *gorm.DB) *Collection[models.Customer] {
	return &Collection[models.Customer]{db: db, name: "customer", uidCol: "customer_uid", setUID: func(c *models.Customer) string {
		if c.CustomerUid == "" {
			c.CustomerUid = uuid.New().String()
		}
		return c.CustomerUid
	}}
}

func NewReservations(db *gorm.DB) *Collection[models.Reservation] {
	return &Collection[models.Reservation]{db: db, name: "reservation", uidCol: "reservation_uid", setUID: func(r *models.Reservation) string {
		if r.ReservationUid == "" {
			r.ReservationUid = uuid.New().String()
		}
		return r.ReservationUid
	}}
}

// WithTx returns a copy of the collection bound to tx.
func (c *Collection[T]) WithTx(tx *gorm.DB) *Collection[T] {
	cp := *c
	cp.db = tx
	return &cp
}

func (c *Collection[T]) DB() *gorm.DB {
	return c.db
}

func (c *Collection[T]) Find(ctx context.Context, scopes ...Scope) ([]T, error) {
	var records []T
	if err := c.db.WithContext(ctx).Scopes(scopes...).Find(&records).Error; err != nil {
		return nil, c.translate(err)
	}
	return records, nil
}

func (c *Collection[T]) FindByID(ctx context.Context, uid string) (T, error) {
	var record T
	err := c.db.WithContext(ctx).Where(c.uidCol+" = ?", uid).First(&record).Error
	if err != nil {
		return record, fmt.Errorf("%s %s: %w", c.name, uid, c.translate(err))
	}
	return record, nil
}

// Insert stores record, assigning a UUID when it has none, and returns that UUID.
func (c *Collection[T]) Insert(ctx context.Context, record *T) (string, error) {
	uid := c.setUID(record)
	if err := c.db.WithContext(ctx).Create(record).Error; err != nil {
		return "", fmt.Errorf("insert %s: %w", c.name, c.translate(err))
	}
	return uid, nil
}

// Update applies patch (column name to value) and returns the updated record.
func (c *Collection[T]) Update(ctx context.Context, uid string, patch map[string]interface{}) (T, error) {
	var zero T
	res := c.db.WithContext(ctx).Model(new(T)).Where(c.uidCol+" = ?", uid).Updates(patch)
	if res.Error != nil {
		return zero, fmt.Errorf("update %s %s: %w", c.name, uid, c.translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return zero, fmt.Errorf("%s %s: %w", c.name, uid, ErrNotFound)
	}
	return c.FindByID(ctx, uid)
}

// UpdateWhere applies patch to the record only while guard still holds.
// It reports how many rows matched; zero means the guard failed or the record is gone.
func (c *Collection[T]) UpdateWhere(ctx context.Context, uid string, patch map[string]interface{}, guard ...Scope) (int64, error) {
	res := c.db.WithContext(ctx).Model(new(T)).Where(c.uidCol+" = ?", uid).Scopes(guard...).Updates(patch)
	if res.Error != nil {
		return 0, fmt.Errorf("update %s %s: %w", c.name, uid, c.translate(res.Error))
	}
	return res.RowsAffected, nil
}

// UpdateAll applies patch to every record matched by scopes and reports how many changed.
func (c *Collection[T]) UpdateAll(ctx context.Context, patch map[string]interface{}, scopes ...Scope) (int64, error) {
	res := c.db.WithContext(ctx).Model(new(T)).Scopes(scopes...).Updates(patch)
	if res.Error != nil {
		return 0, fmt.Errorf("update %s records: %w", c.name, c.translate(res.Error))
	}
	return res.RowsAffected, nil
}

// Delete removes the record, optionally only while guard holds, and reports whether a row was removed.
func (c *Collection[T]) Delete(ctx context.Context, uid string, guard ...Scope) (bool, error) {
	res := c.db.WithContext(ctx).Where(c.uidCol+" = ?", uid).Scopes(guard...).Delete(new(T))
	if res.Error != nil {
		return false, fmt.Errorf("delete %s %s: %w", c.name, uid, c.translate(res.Error))
	}
	return res.RowsAffected > 0, nil
}

func (c *Collection[T]) CountWhere(ctx context.Context, scopes ...Scope) (int64, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(new(T)).Scopes(scopes...).Count(&count).Error; err != nil {
		return 0, c.translate(err)
	}
	return count, nil
}

func (c *Collection[T]) translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", c.name, ErrDuplicateKey)
	default:
		return err
	}
}
