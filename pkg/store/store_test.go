package store

import (
	"context"
	"testing"
	"time"

	"library_catalog/pkg/database"
	"library_catalog/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	return db
}

func TestInsertAssignsUID(t *testing.T) {
	ctx := context.Background()
	books := NewBooks(setupTestDB(t))

	book := models.Book{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441172719", Quantity: 2}
	uid, err := books.Insert(ctx, &book)
	require.NoError(t, err)
	assert.NotEmpty(t, uid)
	assert.Equal(t, uid, book.BookUid)

	found, err := books.FindByID(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "Dune", found.Title)

	kept := models.Book{BookUid: "f7cdc58f-2caf-4b15-9727-f89dcc629b27", Title: "Kept", Author: "A", ISBN: "9780441172720"}
	uid, err = books.Insert(ctx, &kept)
	require.NoError(t, err)
	assert.Equal(t, "f7cdc58f-2caf-4b15-9727-f89dcc629b27", uid)
}

func TestFindByIDNotFound(t *testing.T) {
	_, err := NewCustomers(setupTestDB(t)).FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	books := NewBooks(db)
	customers := NewCustomers(db)

	_, err := books.Insert(ctx, &models.Book{Title: "A", Author: "A", ISBN: "9780441172719"})
	require.NoError(t, err)
	_, err = books.Insert(ctx, &models.Book{Title: "B", Author: "B", ISBN: "9780441172719"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = customers.Insert(ctx, &models.Customer{FirstName: "A", LastName: "B", Email: "a@example.com", MaxReservations: 3})
	require.NoError(t, err)
	_, err = customers.Insert(ctx, &models.Customer{FirstName: "C", LastName: "D", Email: "a@example.com", MaxReservations: 3})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestUpdateAndGuards(t *testing.T) {
	ctx := context.Background()
	books := NewBooks(setupTestDB(t))
	book := models.Book{Title: "Old", Author: "A", ISBN: "9780441172719", Quantity: 1}
	uid, err := books.Insert(ctx, &book)
	require.NoError(t, err)

	updated, err := books.Update(ctx, uid, map[string]interface{}{"title": "New"})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)

	_, err = books.Update(ctx, "missing", map[string]interface{}{"title": "X"})
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := books.UpdateWhere(ctx, uid, map[string]interface{}{"version": 1}, Eq("version", 0))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = books.UpdateWhere(ctx, uid, map[string]interface{}{"version": 1}, Eq("version", 0))
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	deleted, err := books.Delete(ctx, uid, Eq("version", 0))
	require.NoError(t, err)
	assert.False(t, deleted)
	deleted, err = books.Delete(ctx, uid, Eq("version", 1))
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = books.Delete(ctx, uid)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestScopes(t *testing.T) {
	ctx := context.Background()
	reservations := NewReservations(setupTestDB(t))
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []models.ReservationStatus{models.StatusReserved, models.StatusBorrowed, models.StatusReturned, models.StatusReserved} {
		r := models.Reservation{
			BookUid:         "book",
			CustomerUid:     "customer",
			ReservationDate: base,
			DueDate:         base.Add(time.Duration(i) * 24 * time.Hour),
			Status:          status,
		}
		_, err := reservations.Insert(ctx, &r)
		require.NoError(t, err)
	}

	n, err := reservations.CountWhere(ctx, In("status", []models.ReservationStatus{models.StatusReserved, models.StatusBorrowed}))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = reservations.CountWhere(ctx, Before("due_date", base.Add(36*time.Hour)))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	found, err := reservations.Find(ctx, Between("due_date", base.Add(24*time.Hour), base.Add(72*time.Hour)), OrderBy("due_date DESC"), Limit(2))
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.True(t, found[0].DueDate.After(found[1].DueDate))

	n, err = reservations.UpdateAll(ctx, map[string]interface{}{"status": models.StatusOverdue}, Eq("status", models.StatusReserved), IsNull("return_date"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	page, err := reservations.Find(ctx, OrderBy("id"), Page(2, 3))
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSearchGroupsConditions(t *testing.T) {
	ctx := context.Background()
	books := NewBooks(setupTestDB(t))
	for _, b := range []models.Book{
		{Title: "Emma", Author: "Jane Austen", ISBN: "9780141439587", Quantity: 0},
		{Title: "Persuasion", Author: "Jane Austen", ISBN: "9780141439686", Quantity: 2},
		{Title: "Ulysses", Author: "James Joyce", ISBN: "9780141182803", Quantity: 2},
	} {
		_, err := books.Insert(ctx, &b)
		require.NoError(t, err)
	}

	n, err := books.CountWhere(ctx, Search("AUSTEN", "title", "author"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = books.CountWhere(ctx, Search("austen", "title", "author"), Eq("quantity", 2))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = books.CountWhere(ctx, Search("", "title"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
