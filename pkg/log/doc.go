// Package log provides the structured logging interface used by pikarelay.
//
// Components log through [Logger] and never import a logging library
// directly. A zerolog implementation and a no-op implementation are provided.
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	logger = logger.With(log.Int("sender", 1))
//	logger.Info("connected", log.String("addr", "127.0.0.1:9221"))
//
// Implement [Logger] to route relay logs into an existing logging setup.
package log
