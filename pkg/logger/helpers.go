package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogDownload logs the outcome of a single image download attempt
func LogDownload(l Logger, id, url string, size int64, err error) {
	fields := map[string]interface{}{
		"post_id": id,
		"url":     url,
	}

	if err != nil {
		l.WithError(err).WarnWithFields("Image download failed", fields)
		return
	}
	fields["bytes"] = size
	l.DebugWithFields("Image downloaded", fields)
}

// LogFetchProgress logs the periodic fetch progress line
func LogFetchProgress(l Logger, processed, accepted int) {
	l.InfoWithFields("Fetch progress", map[string]interface{}{
		"processed": processed,
		"accepted":  accepted,
	})
}

// LogChapterSkipped logs a chapter dropped from the archive
func LogChapterSkipped(l Logger, id string, reason error) {
	l.WithError(reason).WarnWithFields("Chapter skipped", map[string]interface{}{
		"post_id": id,
	})
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

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

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
