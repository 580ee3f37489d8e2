package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// ValidationFailed sends 400 with a field-keyed error map when err carries one.
func ValidationFailed(c *gin.Context, err error) {
	fields := FieldErrors(err)
	if len(fields) == 0 {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: "validation failed", Fields: fields})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err})
}

// TooLarge sends 413.
func TooLarge(c *gin.Context, err string) {
	c.JSON(http.StatusRequestEntityTooLarge, Body{Success: false, Error: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// AbortUnauthorized sends 401 and stops the handler chain.
func AbortUnauthorized(c *gin.Context, err string) {
	Unauthorized(c, err)
	c.Abort()
}

// AbortForbidden sends 403 and stops the handler chain.
func AbortForbidden(c *gin.Context, err string) {
	Forbidden(c, err)
	c.Abort()
}

// Mapping pairs a domain error with the status it renders as.
type Mapping struct {
	Err    error
	Status int
	Msg    string
}

// Error renders the first mapping matching err, or 500 with fallback.
func Error(c *gin.Context, err error, fallback string, mappings ...Mapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			msg := m.Msg
			if msg == "" {
				msg = m.Err.Error()
			}
			c.JSON(m.Status, Body{Success: false, Error: msg})
			return
		}
	}
	if fields := FieldErrors(err); len(fields) > 0 {
		c.JSON(http.StatusBadRequest, Body{Success: false, Error: "validation failed", Fields: fields})
		return
	}
	Internal(c, fallback)
}

// Known reports whether Error would render err as a client error.
func Known(err error, mappings ...Mapping) bool {
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			return true
		}
	}
	return FieldErrors(err) != nil
}
