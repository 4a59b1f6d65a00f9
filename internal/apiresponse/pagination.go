package apiresponse

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageRequest is a validated page/limit pair.
type PageRequest struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip.
func (request PageRequest) Offset() int {
	return (request.Page - 1) * request.Limit
}

// Page is the paginated response body.
type Page[T any] struct {
	Docs        []T   `json:"docs"`
	TotalDocs   int64 `json:"totalDocs"`
	Limit       int   `json:"limit"`
	Page        int   `json:"page"`
	TotalPages  int   `json:"totalPages"`
	HasPrevPage bool  `json:"hasPrevPage"`
	HasNextPage bool  `json:"hasNextPage"`
	PrevPage    *int  `json:"prevPage"`
	NextPage    *int  `json:"nextPage"`
}

// ParsePage reads page and limit from the query string. Limit is capped at MaxLimit.
func ParsePage(contextGin *gin.Context) (PageRequest, *Error) {
	var violations []Violation
	page, pageViolation := positiveQueryInt(contextGin, "page", DefaultPage)
	if pageViolation != nil {
		violations = append(violations, *pageViolation)
	}
	limit, limitViolation := positiveQueryInt(contextGin, "limit", DefaultLimit)
	if limitViolation != nil {
		violations = append(violations, *limitViolation)
	}
	if len(violations) > 0 {
		return PageRequest{}, Invalid(violations)
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page > math.MaxInt/limit {
		return PageRequest{}, Invalid([]Violation{positiveIntegerViolation("page", "page is out of range")})
	}
	return PageRequest{Page: page, Limit: limit}, nil
}

func positiveQueryInt(contextGin *gin.Context, name string, fallback int) (int, *Violation) {
	raw := strings.TrimSpace(contextGin.Query(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		violation := positiveIntegerViolation(name, fmt.Sprintf("%s must be a positive integer", name))
		return 0, &violation
	}
	return value, nil
}

func positiveIntegerViolation(name string, message string) Violation {
	return Violation{Field: name, Rule: "positive_integer", Message: message}
}

// NewPage assembles a Page from one slice of results and the total match count.
func NewPage[T any](docs []T, totalDocs int64, request PageRequest) Page[T] {
	if docs == nil {
		docs = []T{}
	}
	totalPages := 0
	if request.Limit > 0 {
		totalPages = int((totalDocs + int64(request.Limit) - 1) / int64(request.Limit))
	}
	if totalPages == 0 {
		totalPages = 1
	}
	page := Page[T]{
		Docs:        docs,
		TotalDocs:   totalDocs,
		Limit:       request.Limit,
		Page:        request.Page,
		TotalPages:  totalPages,
		HasPrevPage: request.Page > 1,
		HasNextPage: request.Page < totalPages,
	}
	if page.HasPrevPage {
		previous := request.Page - 1
		page.PrevPage = &previous
	}
	if page.HasNextPage {
		next := request.Page + 1
		page.NextPage = &next
	}
	return page
}
