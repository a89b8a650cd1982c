package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func getDashboard(c *gin.Context) {
	summary, err := svc.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
