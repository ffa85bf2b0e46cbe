// Package logging builds the structured logger threaded through the
// walker, the write-back queue, and the oni daemon. Per-file ingest failures
// are warnings, not fatal errors (spec §7's "log and continue" policy);
// this package exists so every package logs through the same sink instead
// of reaching for fmt.Println.
package logging

import "go.uber.org/zap"

// New builds a *zap.SugaredLogger. dev selects the human-readable console
// encoder (for local runs); production builds use the JSON encoder.
func New(dev bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything, used by tests that don't
// care about log output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
