package zapo11y

import (
	"context"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"go.uber.org/zap"
)

type zapLogger struct {
	zap *zap.Logger
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	l.zap.Debug(msg, toZapFields(fields)...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	l.zap.Info(msg, toZapFields(fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	l.zap.Warn(msg, toZapFields(fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, fields ...observability.Field) {
	l.zap.Error(msg, toZapFields(fields)...)
}

func (l *zapLogger) With(fields ...observability.Field) observability.Logger {
	return &zapLogger{zap: l.zap.With(toZapFields(fields)...)}
}

func toZapFields(fields []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
