package cache

import (
	"fmt"
	"slices"
	"strings"
)

// Params are the query parameters of a cached request
type Params map[string]any

// Key returns the canonical cache key for an endpoint and its parameters:
// endpoint + "?" + sorted "k=v" pairs joined by "&". Equivalent parameter
// sets produce the same key regardless of map order.
func Key(endpoint string, params Params) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, k+"="+fmt.Sprint(v))
	}
	slices.Sort(pairs)
	return endpoint + "?" + strings.Join(pairs, "&")
}
