package response

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/crowdfund-backend/internal/errors"
)

// Body is the standard API response envelope. List endpoints fill the
// paging fields.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Total   *int        `json:"total,omitempty"`
	Page    *int        `json:"page,omitempty"`
	Pages   *int        `json:"pages,omitempty"`
}

// Page describes one page of a list.
type Page struct {
	Count, Total, Page, Pages int
}

func JSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// OK sends a 200 JSON response with data.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, Body{Success: true, Data: data})
}

// List sends a 200 response carrying paging counters.
func List(w http.ResponseWriter, data interface{}, p Page) {
	JSON(w, http.StatusOK, Body{
		Success: true,
		Data:    data,
		Count:   &p.Count,
		Total:   &p.Total,
		Page:    &p.Page,
		Pages:   &p.Pages,
	})
}

// BadRequest sends 400 with error message.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, Body{Error: msg})
}

// Unauthorized sends 401.
func Unauthorized(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusUnauthorized, Body{Error: msg})
}

// Forbidden sends 403.
func Forbidden(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusForbidden, Body{Error: msg})
}

// Error maps err to its status code. Unexpected errors are logged and
// reported with a generic message.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := appErrors.HTTPStatus(err)
	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", zap.Error(err))
	}
	JSON(w, status, Body{Error: appErrors.PublicMessage(err)})
}
