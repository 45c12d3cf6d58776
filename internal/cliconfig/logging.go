package cliconfig

import (
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bft-labs/pikarelay/pkg/log"
)

// NewLogger builds the process logger. Every line carries a run_id that is
// unique to this process, so runs can be told apart in aggregated logs.
func NewLogger(w io.Writer, level, format string) (*log.ZerologAdapter, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var zl zerolog.Logger
	if format == LogFormatJSON {
		zl = log.NewJSONLogger(w, lvl)
	} else {
		zl = log.NewConsoleLogger(w, lvl)
	}
	zl = zl.With().Str("run_id", uuid.NewString()).Logger()
	return log.NewZerologAdapterWithLogger(zl), nil
}
