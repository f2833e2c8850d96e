// Package logger wraps zerolog behind a small structured logging interface.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("page", 12).Info("Page processed")
//	log.WithError(err).Warn("Download failed")
//
// Components take a Logger in their constructors; NewTestLogger captures
// messages for assertions and NewNopLogger discards them.
package logger
