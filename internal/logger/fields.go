package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldSession  = "session_id"
	FieldRole     = "role"
)

// ModelFields returns the fields describing which model backs a session.
// Blank values are left out.
func ModelFields(provider, model string) []zap.Field {
	return nonBlank(FieldProvider, provider, FieldModel, model)
}

// WithModel attaches provider and model fields to log. A nil log yields a
// no-op logger.
func WithModel(log *zap.Logger, provider, model string) *zap.Logger {
	return with(log, ModelFields(provider, model))
}

// WithSession attaches the interview session id and role to log.
func WithSession(log *zap.Logger, sessionID, role string) *zap.Logger {
	return with(log, nonBlank(FieldSession, sessionID, FieldRole, role))
}

// nonBlank takes alternating keys and values.
func nonBlank(pairs ...string) []zap.Field {
	fields := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if value := strings.TrimSpace(pairs[i+1]); value != "" {
			fields = append(fields, zap.String(pairs[i], value))
		}
	}
	return fields
}

func with(log *zap.Logger, fields []zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}
