package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/usecase"
)

type Pagination[T any] struct {
	Page  int  `json:"page"`
	Size  int  `json:"size"`
	Total *int `json:"total"`
	Items []T  `json:"items"`
}

// maxPage keeps (page-1)*size far from int overflow.
const maxPage = 1_000_000

func getPagination[T any](r *http.Request) Pagination[T] {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	} else if page > maxPage {
		page = maxPage
	}

	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil {
		size = 50
	}
	if size < 1 {
		size = 1
	} else if size > 100 {
		size = 100
	}

	return Pagination[T]{
		Page:  page,
		Size:  size,
		Total: nil,
		Items: []T{},
	}
}

var validate = validator.New()

func validateInput(input interface{}) error {
	return validate.Struct(input)
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExecuted),
		errors.Is(err, domain.ErrAlreadyRejected),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientPosition),
		errors.Is(err, domain.ErrInvalidOrder):
		return http.StatusUnprocessableEntity
	case errors.Is(err, usecase.ErrNoPriceSource):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
