package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK writes data as the JSON body with status 200.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created writes data as the JSON body with status 201.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Fail writes the error payload {error, details?}. details is a dotted message key
// the dashboard resolves to localized text.
func Fail(c *gin.Context, httpStatus int, msg string, details string) {
	body := gin.H{"error": msg}
	if details != "" {
		body["details"] = details
	}
	c.AbortWithStatusJSON(httpStatus, body)
}
