// internal/utils/pagination.go
package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

type PaginationParams struct {
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
	Category string `json:"category"`
	Status   string `json:"status"`
}

// PaginationResult carries no total: the collection endpoint only reports
// whether another page exists.
type PaginationResult struct {
	Page        int         `json:"page"`
	Limit       int         `json:"limit"`
	HasNextPage bool        `json:"has_next_page"`
	Data        interface{} `json:"data"`
}

func GetPaginationParams(c *gin.Context) PaginationParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	return NormalizePagination(PaginationParams{
		Page:     page,
		Limit:    limit,
		Category: c.Query("category"),
		Status:   c.Query("status"),
	})
}

func NormalizePagination(p PaginationParams) PaginationParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > 100 {
		p.Limit = 20
	}
	return p
}

func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

func CreatePaginationResult(data interface{}, hasNext bool, params PaginationParams) PaginationResult {
	return PaginationResult{
		Page:        params.Page,
		Limit:       params.Limit,
		HasNextPage: hasNext,
		Data:        data,
	}
}

func SetPaginationHeaders(c *gin.Context, result PaginationResult) {
	c.Header("X-Page", strconv.Itoa(result.Page))
	c.Header("X-Per-Page", strconv.Itoa(result.Limit))
	c.Header("X-Has-Next-Page", strconv.FormatBool(result.HasNextPage))
}
