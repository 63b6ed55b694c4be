package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogItemProcessed logs one scanned item; every processed item produces
// exactly one of these, doubling as the audit trail.
func LogItemProcessed(id, filename, classification string, downloaded bool) {
	GetLogger().InfoWithFields("Item processed", map[string]interface{}{
		"id":             id,
		"filename":       filename,
		"classification": classification,
		"downloaded":     downloaded,
	})
}

// LogStall logs a navigation step that did not move the cursor
func LogStall(fingerprint string, attempt, maxAttempts int) {
	GetLogger().WarnWithFields("Navigation stalled", map[string]interface{}{
		"fingerprint": fingerprint,
		"attempt":     attempt,
		"max":         maxAttempts,
		"action":      "stall_retry",
	})
}

// LogDownload logs download operations
func LogDownload(id, filename string, success bool, err error) {
	fields := map[string]interface{}{
		"id":       id,
		"filename": filename,
		"success":  success,
	}

	logger := GetLogger().WithFields(fields)

	if err != nil {
		logger.WithError(err).Error("Download failed")
	} else if success {
		logger.Info("Download completed")
	} else {
		logger.Warn("Download skipped")
	}
}

// LogCorrection logs a date correction decision or write-back
func LogCorrection(id, filename string, target string, applied bool) {
	GetLogger().InfoWithFields("Date correction", map[string]interface{}{
		"id":       id,
		"filename": filename,
		"target":   target,
		"applied":  applied,
	})
}

// LogScanProgress logs scan progress
func LogScanProgress(runID string, processed, downloaded int) {
	GetLogger().WithFields(map[string]interface{}{
		"run_id":     runID,
		"processed":  processed,
		"downloaded": downloaded,
	}).Info("Scan progress")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	logger := GetLogger().WithField("component", component)

	if len(config) > 0 {
		logger = logger.WithFields(config)
	}

	logger.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// MustGetLogger gets the logger or panics if it fails
func MustGetLogger() Logger {
	logger := GetLogger()
	if logger == nil {
		panic("logger not initialized")
	}
	return logger
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
