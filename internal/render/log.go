package render

import "github.com/sirupsen/logrus"

// logger carries all background diagnostics. Paint failures in
// asynchronous mode have no caller to report to, so they land here
// instead. Tile rebuffer failures are logged here as well as returned.
var logger = logrus.StandardLogger()

// SetLogger redirects the package diagnostics to l. Pass nil to restore
// the standard logger.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	logger = l
}
