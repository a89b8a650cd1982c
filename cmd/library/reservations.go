package main

import (
	"context"
	"net/http"
	"time"

	"library_catalog/pkg/circulation"
	"library_catalog/pkg/models"

	"github.com/gin-gonic/gin"
)

func getReservations(c *gin.Context) {
	page, size := pageParams(c)
	reservations, total, err := svc.ListReservations(c.Request.Context(), circulation.ReservationQuery{
		Status:      models.ReservationStatus(c.Query("status")),
		CustomerUid: c.Query("customerUid"),
		BookUid:     c.Query("bookUid"),
		Page:        page,
		Size:        size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paged(page, size, total, reservations))
}

func getReservation(c *gin.Context) {
	reservation, err := svc.GetReservation(c.Request.Context(), c.Param("reservationUid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

func createReservation(c *gin.Context) {
	var request struct {
		BookUid     string `json:"bookUid" binding:"required"`
		CustomerUid string `json:"customerUid" binding:"required"`
		DueDate     string `json:"dueDate"`
		Notes       string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	req := circulation.CreateReservationRequest{
		BookUid:     request.BookUid,
		CustomerUid: request.CustomerUid,
		Notes:       request.Notes,
	}
	if request.DueDate != "" {
		due, err := parseDate(request.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid data format", "kind": "validation_error"})
			return
		}
		req.DueDate = &due
	}
	reservation, err := svc.CreateReservation(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Location", "/api/v1/reservations/"+reservation.ReservationUid)
	c.JSON(http.StatusCreated, circulation.NewReservationView(reservation, svc.Now()))
}

// parseDate accepts RFC 3339 timestamps and plain dates. A plain date means the end of that day in UTC.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(24*time.Hour - time.Second), nil
}

func borrowBook(c *gin.Context) {
	transition(c, svc.Borrow)
}

func renewReservation(c *gin.Context) {
	transition(c, svc.Renew)
}

func returnBook(c *gin.Context) {
	transition(c, svc.Return)
}

func payFine(c *gin.Context) {
	transition(c, svc.PayFine)
}

func cancelReservation(c *gin.Context) {
	transition(c, svc.Cancel)
}

func transition(c *gin.Context, op func(context.Context, string) (models.Reservation, error)) {
	reservation, err := op(c.Request.Context(), c.Param("reservationUid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, circulation.NewReservationView(reservation, svc.Now()))
}

func sweepOverdue(c *gin.Context) {
	n, err := svc.MarkOverdue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}
