// Package observability builds the process logger and error reporting.
package observability

import "go.uber.org/zap"

// NewLogger returns a production JSON logger, or a development console
// logger when debug is set.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
