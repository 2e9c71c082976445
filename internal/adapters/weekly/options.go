package weekly

import "github.com/okian/tackle/pkg/logger"

// Default week range of the tracking data set.
const (
	DefaultWeekStart = 1
	DefaultWeekEnd   = 9
)

// Option applies a configuration option to a Catalog.
type Option func(*Catalog)

// WithWeekRange limits the scan to weeks [start, end].
func WithWeekRange(start, end int) Option {
	return func(c *Catalog) {
		c.start, c.end = start, end
	}
}

// WithLogger sets the logger used while scanning.
func WithLogger(l logger.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}
