package must

import (
	"io"
	"os"

	"github.com/duscan/duscan/pkg/logging"
)

// Close closes c, logging (rather than propagating) any error. It's used for
// deferred closes of directory handles and sink writers where a close
// failure shouldn't mask the primary operation's result.
func Close(c io.Closer, logger *logging.Logger) {
	if err := c.Close(); err != nil {
		logger.Warnf("Unable to close: %s", err.Error())
	}
}

// OSRemove removes the named file, logging (rather than propagating) any
// error. It's used for best-effort cleanup of partial snapshot files.
func OSRemove(name string, logger *logging.Logger) {
	if err := os.Remove(name); err != nil {
		logger.Warnf("Unable to remove '%s': %s", name, err.Error())
	}
}

// Flush flushes sd, logging (rather than propagating) any error.
func Flush(sd interface{ Flush() error }, logger *logging.Logger) {
	if err := sd.Flush(); err != nil {
		logger.Warnf("Unable to flush: %s", err.Error())
	}
}
