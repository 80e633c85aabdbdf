package helpers

import (
	"net/http"
	"strconv"

	"campusevents/internal/domain"
)

// ParsePagination reads ?page= and ?page_size= from the query string.
// Unparseable values are ignored and the result is normalized to the domain limits.
func ParsePagination(r *http.Request) domain.PaginationParams {
	q := r.URL.Query()
	return domain.PaginationParams{
		Page:     queryInt(q.Get("page")),
		PageSize: queryInt(q.Get("page_size")),
	}.Normalize()
}

func queryInt(raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

// PaginationMeta describes the page returned by a list endpoint.
// swagger:model PaginationMeta
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPaginationMeta computes TotalPages by rounding total/pageSize up.
func NewPaginationMeta(page, pageSize, total int) PaginationMeta {
	meta := PaginationMeta{Page: page, PageSize: pageSize, Total: total}
	if pageSize > 0 {
		meta.TotalPages = (total + pageSize - 1) / pageSize
	}
	return meta
}

// ListResponse is the data payload of paginated list endpoints.
// swagger:model ListResponse
type ListResponse struct {
	Items      any            `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

func NewListResponse(items any, params domain.PaginationParams, total int) ListResponse {
	return ListResponse{Items: items, Pagination: NewPaginationMeta(params.Page, params.PageSize, total)}
}
