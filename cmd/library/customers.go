package main

import (
	"net/http"

	"library_catalog/pkg/circulation"
	"library_catalog/pkg/models"

	"github.com/gin-gonic/gin"
)

type customerRequest struct {
	FirstName       string                `json:"firstName" binding:"required"`
	LastName        string                `json:"lastName" binding:"required"`
	Email           string                `json:"email" binding:"required"`
	Phone           string                `json:"phone"`
	Address         models.Address        `json:"address"`
	Status          models.CustomerStatus `json:"status"`
	MaxReservations int                   `json:"maxReservations"`
	Notes           string                `json:"notes"`
}

type customerPatchRequest struct {
	FirstName       *string                `json:"firstName"`
	LastName        *string                `json:"lastName"`
	Email           *string                `json:"email"`
	Phone           *string                `json:"phone"`
	Address         *models.Address        `json:"address"`
	Status          *models.CustomerStatus `json:"status"`
	MaxReservations *int                   `json:"maxReservations"`
	Notes           *string                `json:"notes"`
}

func getCustomers(c *gin.Context) {
	page, size := pageParams(c)
	customers, total, err := svc.ListCustomers(c.Request.Context(), circulation.CustomerQuery{
		Search: c.Query("search"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paged(page, size, total, customers))
}

func getCustomer(c *gin.Context) {
	detail, err := svc.GetCustomer(c.Request.Context(), c.Param("customerUid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func createCustomer(c *gin.Context) {
	var request customerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	customer, err := svc.CreateCustomer(c.Request.Context(), models.Customer{
		FirstName:       request.FirstName,
		LastName:        request.LastName,
		Email:           request.Email,
		Phone:           request.Phone,
		Address:         request.Address,
		Status:          request.Status,
		MaxReservations: request.MaxReservations,
		Notes:           request.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Location", "/api/v1/customers/"+customer.CustomerUid)
	c.JSON(http.StatusCreated, customer)
}

func updateCustomer(c *gin.Context) {
	var request customerPatchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	customer, err := svc.UpdateCustomer(c.Request.Context(), c.Param("customerUid"), circulation.CustomerPatch{
		FirstName:       request.FirstName,
		LastName:        request.LastName,
		Email:           request.Email,
		Phone:           request.Phone,
		Address:         request.Address,
		Status:          request.Status,
		MaxReservations: request.MaxReservations,
		Notes:           request.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func deleteCustomer(c *gin.Context) {
	if err := svc.DeleteCustomer(c.Request.Context(), c.Param("customerUid")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
