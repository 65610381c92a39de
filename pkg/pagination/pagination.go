package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/parcelwatch/fraud-screening/pkg/common"
)

const (
	// DefaultLimit is used when the caller omits or sends an invalid limit.
	DefaultLimit = 20
	// MaxLimit caps the page size regardless of what the caller asks for.
	MaxLimit = 100
	// DefaultOffset is used when the caller omits or sends an invalid offset.
	DefaultOffset = 0
)

// Params holds the parsed pagination query parameters.
type Params struct {
	Limit  int
	Offset int
}

// ParseParams reads limit and offset from the query string, clamping
// invalid values to the defaults and the limit to MaxLimit.
func ParseParams(c *gin.Context) Params {
	params := Params{
		Limit:  DefaultLimit,
		Offset: DefaultOffset,
	}

	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			if limit > MaxLimit {
				limit = MaxLimit
			}
			params.Limit = limit
		}
	}

	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			params.Offset = offset
		}
	}

	return params
}

// BuildMeta assembles response metadata for a paginated list.
func BuildMeta(limit, offset int, total int64) *common.Meta {
	meta := &common.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	}
	if limit > 0 && total > 0 {
		meta.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return meta
}

// HasMore reports whether another page exists past the current one.
func HasMore(offset, limit int, total int64) bool {
	return int64(offset+limit) < total
}

// GetCurrentPage converts an offset into a 1-based page number.
func GetCurrentPage(offset, limit int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}
