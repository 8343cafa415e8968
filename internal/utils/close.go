package utils

import (
	"io"

	"github.com/MrSnakeDoc/openbinder/internal/logger"
)

// Close closes c and ignores any error.
// Use for best-effort cleanup in defer where error handling is not critical.
func Close(c io.Closer) {
	_ = c.Close()
}

// MustClose closes c and logs any error.
// Use for defer statements on writers, where a failed close can lose data.
func MustClose(c io.Closer, log logger.Logger, what string) {
	if err := c.Close(); err != nil {
		log.Warn("failed to close", logger.String("what", what), logger.Error(err))
	}
}
