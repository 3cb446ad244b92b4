package logger

import "go.uber.org/zap"

// New returns a zap logger. Debug mode uses the development config
// (console encoding, debug level); otherwise the production JSON config.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

