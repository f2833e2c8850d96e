package logger

// LogPage logs the outcome of one page of the crawl
func LogPage(l Logger, page int, url string, fields map[string]interface{}) {
	merged := map[string]interface{}{
		"page": page,
		"url":  url,
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.InfoWithFields("Page processed", merged)
}

// LogDownload logs a single download outcome. A nil err with success false
// means the file was skipped.
func LogDownload(l Logger, url, filename string, success bool, err error) {
	entry := l.WithFields(map[string]interface{}{
		"url":      url,
		"filename": filename,
	})

	switch {
	case err != nil:
		entry.WithError(err).Warn("Download failed")
	case success:
		entry.Info("Download completed")
	default:
		entry.Debug("Download skipped")
	}
}

// LogSessionEvent logs login and session verification events
func LogSessionEvent(l Logger, event, username string, attempt int) {
	l.InfoWithFields("Session "+event, map[string]interface{}{
		"username": username,
		"attempt":  attempt,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, fields map[string]interface{}) {
	entry := l.WithField("component", component)
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string) {}
func (nopLogger) Info(string) {}
func (nopLogger) Warn(string) {}
func (nopLogger) Error(string) {}
func (n nopLogger) WithField(string, interface{}) Logger { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger { return n }
func (n nopLogger) WithError(error) Logger { return n }
func (nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (nopLogger) InfoWithFields(string, map[string]interface{}) {}
func (nopLogger) WarnWithFields(string, map[string]interface{}) {}
func (nopLogger) ErrorWithFields(string, map[string]interface{}) {}
