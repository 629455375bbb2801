package utils

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// GetIDParam parses the named path parameter as a positive integer id.
func GetIDParam(ctx *gin.Context, name string) (uint, error) {
	raw := ctx.Param(name)

	if raw == "" {
		return 0, errors.New("ID not found")
	}

	id, err := strconv.ParseUint(raw, 10, 32)

	if err != nil || id == 0 {
		return 0, errors.New("Invalid ID")
	}

	return uint(id), nil
}

// Page is a limit/offset window over a list endpoint.
type Page struct {
	Limit  int
	Offset int
}

// GetPage reads ?limit= and ?offset=, clamping limit to MaxPageSize.
// Unparseable or negative values fall back to the defaults.
func GetPage(ctx *gin.Context) Page {
	page := Page{Limit: DefaultPageSize}

	if limit, err := strconv.Atoi(ctx.Query("limit")); err == nil && limit > 0 {
		page.Limit = min(limit, MaxPageSize)
	}

	if offset, err := strconv.Atoi(ctx.Query("offset")); err == nil && offset > 0 {
		page.Offset = offset
	}

	return page
}
