package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/findirfin/ringil/internal/pkg/constants"
)

// PaginationParams represents standard pagination parameters.
// A zero Limit leaves the page size to the conversation store.
type PaginationParams struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// MaxLimit caps the limit query parameter
var MaxLimit = constants.MaxPageLimit

// ParsePaginationParams extracts limit and offset from the query string;
// malformed or non-positive values are treated as absent.
func ParsePaginationParams(c *gin.Context) PaginationParams {
	limit := positiveQuery(c, "limit")
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return PaginationParams{
		Limit:  limit,
		Offset: positiveQuery(c, "offset"),
	}
}

func positiveQuery(c *gin.Context, param string) int {
	parsed, err := strconv.Atoi(c.Query(param))
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

// IDParam extracts a positive integer path parameter such as a conversation id
func IDParam(c *gin.Context, param string) (int64, error) {
	raw := c.Param(param)
	if raw == "" {
		return 0, fmt.Errorf("required parameter '%s' is missing", param)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("parameter '%s' must be a positive integer", param)
	}
	return id, nil
}
