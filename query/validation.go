package query

import (
	"github.com/vegasq/insightq"
)

// Validation limits to prevent resource exhaustion
const (
	// MaxQueryLength is the maximum allowed query document size (1MB)
	MaxQueryLength = 1024 * 1024

	// MaxFilterDepth is the maximum nesting depth of a WHERE tree
	MaxFilterDepth = 100

	// MaxResultRows is the maximum number of rows a query may produce
	MaxResultRows = 5000
)

// ValidateQueryLength rejects query documents above MaxQueryLength
func ValidateQueryLength(raw []byte) error {
	if len(raw) > MaxQueryLength {
		return insightq.ValidationErr("query too long", map[string]any{
			"bytes": len(raw),
			"max":   MaxQueryLength,
		})
	}
	return nil
}

// depthCounter tracks filter nesting depth while decoding
type depthCounter struct {
	depth    int
	maxDepth int
}

func newDepthCounter() *depthCounter {
	return &depthCounter{maxDepth: MaxFilterDepth}
}

// Enter increments depth and returns an error if the limit is exceeded
func (c *depthCounter) Enter() error {
	c.depth++
	if c.depth > c.maxDepth {
		return insightq.ValidationErr("filter nesting too deep", map[string]any{
			"depth": c.depth,
			"max":   c.maxDepth,
		})
	}
	return nil
}

// Exit decrements depth
func (c *depthCounter) Exit() {
	c.depth--
}
