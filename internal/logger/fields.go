package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldRequestID is the structured log field key for a pipeline request.
	FieldRequestID = "request_id"
	// FieldStage is the structured log field key for the pipeline stage.
	FieldStage = "stage"
	// FieldModel is the structured log field key for the generation or embedding model.
	FieldModel = "model"
)

// WithFields safely attaches the provided fields to the logger, defaulting to a
// no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	logger = OrNop(logger)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// RequestFields returns the fields identifying one pipeline run. Empty values are omitted.
func RequestFields(requestID, model string) []zap.Field {
	var out []zap.Field
	if v := strings.TrimSpace(requestID); v != "" {
		out = append(out, zap.String(FieldRequestID, v))
	}
	if v := strings.TrimSpace(model); v != "" {
		out = append(out, zap.String(FieldModel, v))
	}
	return out
}

// ForStage returns a child logger tagged with the stage name
func ForStage(logger *zap.Logger, stage string) *zap.Logger {
	return WithFields(logger, zap.String(FieldStage, stage))
}
