package circulation

import (
	"context"
	"testing"

	"library_catalog/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCustomerDefaults(t *testing.T) {
	ctx := context.Background()
	s, _ := setupService(t)

	c, err := s.CreateCustomer(ctx, models.Customer{FirstName: "Grace", LastName: "Hopper", Email: " Grace@Example.COM "})
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", c.Email)
	assert.Equal(t, models.CustomerActive, c.Status)
	assert.Equal(t, 3, c.MaxReservations)
	assert.True(t, c.MembershipDate.Equal(t0))
	assert.Equal(t, "Turkey", c.Address.Country)
	assert.Equal(t, "Grace Hopper", c.FullName)
}

func TestCreateCustomerValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := setupService(t)

	tests := []struct {
		name     string
		customer models.Customer
		field    string
	}{
		{"bad email", models.Customer{FirstName: "A", LastName: "B", Email: "not-an-email"}, "Email"},
		{"email without dot", models.Customer{FirstName: "A", LastName: "B", Email: "a@b"}, "Email"},
		{"email with space", models.Customer{FirstName: "A", LastName: "B", Email: "a b@example.com"}, "Email"},
		{"email with two ats", models.Customer{FirstName: "A", LastName: "B", Email: "a@b@example.com"}, "Email"},
		{"bad phone", models.Customer{FirstName: "A", LastName: "B", Email: "a@b.io", Phone: "call me"}, "Phone"},
		{"limit too high", models.Customer{FirstName: "A", LastName: "B", Email: "a@b.io", MaxReservations: 11}, "MaxReservations"},
		{"unknown status", models.Customer{FirstName: "A", LastName: "B", Email: "a@b.io", Status: "banned"}, "Status"},
		{"missing name", models.Customer{LastName: "B", Email: "a@b.io"}, "FirstName"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateCustomer(ctx, tt.customer)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	_, err := s.CreateCustomer(ctx, models.Customer{FirstName: "A", LastName: "B", Email: "o'brien+loans@mail.example.ie"})
	assert.NoError(t, err)
}

func TestCreateCustomerDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s, _ := setupService(t)

	_, err := s.CreateCustomer(ctx, models.Customer{FirstName: "A", LastName: "B", Email: "dup@example.com"})
	require.NoError(t, err)
	_, err = s.CreateCustomer(ctx, models.Customer{FirstName: "C", LastName: "D", Email: "DUP@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestGetCustomerDetail(t *testing.T) {
	ctx := context.Background()
	s, clock := setupService(t)
	customer := addCustomer(t, s, 3)
	book := addBook(t, s, 3)

	late := reserve(t, s, book.BookUid, customer.CustomerUid)
	reserve(t, s, book.BookUid, customer.CustomerUid)
	clock.Advance(17 * day)
	_, err := s.Return(ctx, late.ReservationUid)
	require.NoError(t, err)

	detail, err := s.GetCustomer(ctx, customer.CustomerUid)
	require.NoError(t, err)
	assert.Equal(t, customer.CustomerUid, detail.Customer.CustomerUid)
	assert.Equal(t, 2, detail.Stats.TotalReservations)
	assert.Equal(t, 0, detail.Stats.ActiveReservations)
	assert.Equal(t, 1, detail.Stats.OverdueReservations)
	assert.False(t, detail.Eligible)
	assert.Equal(t, 3.0, detail.Stats.TotalFines)
	assert.Equal(t, 3.0, detail.Stats.UnpaidFines)
	require.Len(t, detail.Reservations, 2)

	for _, r := range detail.Reservations {
		if r.ReservationUid == late.ReservationUid {
			assert.Equal(t, 0, r.DaysOverdue)
			continue
		}
		assert.Equal(t, models.StatusOverdue, r.EffectiveStatus)
		assert.Equal(t, 3, r.DaysOverdue)
		assert.Equal(t, 17, r.LoanDuration)
	}

	_, err = s.GetCustomer(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCustomersSearch(t *testing.T) {
	ctx := context.Background()
	s, _ := setupService(t)
	for _, c := range []models.Customer{
		{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		{FirstName: "Alan", LastName: "Turing", Email: "alan@example.com", Phone: "+441234567"},
		{FirstName: "Edsger", LastName: "Dijkstra", Email: "ewd@example.com"},
	} {
		_, err := s.CreateCustomer(ctx, c)
		require.NoError(t, err)
	}

	customers, total, err := s.ListCustomers(ctx, CustomerQuery{Search: "TURING"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, customers, 1)
	assert.Equal(t, "Alan Turing", customers[0].FullName)

	customers, total, err = s.ListCustomers(ctx, CustomerQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, customers, 3)
	assert.Equal(t, "Dijkstra", customers[0].LastName)
}

func TestUpdateCustomer(t *testing.T) {
	ctx := context.Background()
	s, _ := setupService(t)
	c := addCustomer(t, s, 3)

	limit := 5
	email := "New@Example.com"
	updated, err := s.UpdateCustomer(ctx, c.CustomerUid, CustomerPatch{MaxReservations: &limit, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.MaxReservations)
	assert.Equal(t, "new@example.com", updated.Email)

	zero := 0
	_, err = s.UpdateCustomer(ctx, c.CustomerUid, CustomerPatch{MaxReservations: &zero})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteCustomerWithActiveReservations(t *testing.T) {
	ctx := context.Background()
	s, _ := setupService(t)
	c := addCustomer(t, s, 3)
	r := reserve(t, s, addBook(t, s, 1).BookUid, c.CustomerUid)

	assert.ErrorIs(t, s.DeleteCustomer(ctx, c.CustomerUid), ErrConflict)

	_, err := s.Cancel(ctx, r.ReservationUid)
	require.NoError(t, err)
	require.NoError(t, s.DeleteCustomer(ctx, c.CustomerUid))

	_, err = s.GetCustomer(ctx, c.CustomerUid)
	assert.ErrorIs(t, err, ErrNotFound)
}
