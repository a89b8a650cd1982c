package main

import (
	"errors"
	"net/http"
	"strconv"

	"library_catalog/pkg/circulation"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var statusByKind = map[string]int{
	"not_found":              http.StatusNotFound,
	"unavailable":            http.StatusUnprocessableEntity,
	"not_eligible":           http.StatusUnprocessableEntity,
	"invalid_transition":     http.StatusUnprocessableEntity,
	"renewal_limit_exceeded": http.StatusUnprocessableEntity,
	"duplicate_key":          http.StatusConflict,
	"conflict":               http.StatusConflict,
	"validation_error":       http.StatusBadRequest,
}

// respondError writes err as a JSON error body with the status its kind maps to.
func respondError(c *gin.Context, err error) {
	kind := circulation.Kind(err)
	status, ok := statusByKind[kind]
	if !ok {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "kind": "internal"})
		return
	}
	body := gin.H{"error": err.Error(), "kind": kind}
	var verr *circulation.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
		"kind":    "validation_error",
	})
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil || size < 1 || size > 100 {
		size = 10
	}
	return page, size
}

func paged(page, size int, total int64, items interface{}) gin.H {
	return gin.H{
		"page":          page,
		"pageSize":      size,
		"totalElements": total,
		"items":         items,
	}
}
