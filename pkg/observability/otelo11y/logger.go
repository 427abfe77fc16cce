package otelo11y

import (
	"context"
	"fmt"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type otelLogger struct {
	console *zap.Logger
	emitter otellog.Logger
	level   observability.LogLevel
	fields  []observability.Field
}

func (l *otelLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, observability.LogLevelDebug, msg, fields)
}

func (l *otelLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, observability.LogLevelInfo, msg, fields)
}

func (l *otelLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, observability.LogLevelWarn, msg, fields)
}

func (l *otelLogger) Error(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, observability.LogLevelError, msg, fields)
}

func (l *otelLogger) With(fields ...observability.Field) observability.Logger {
	merged := make([]observability.Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &otelLogger{
		console: l.console,
		emitter: l.emitter,
		level:   l.level,
		fields:  merged,
	}
}

func (l *otelLogger) log(ctx context.Context, level observability.LogLevel, msg string, fields []observability.Field) {
	if severityOf(level) < severityOf(l.level) {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	all := make([]observability.Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)

	zfields := toZapFields(all)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		zfields = append(zfields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if ce := l.console.Check(zapLevel(level), msg); ce != nil {
		ce.Write(zfields...)
	}

	var record otellog.Record
	now := time.Now()
	record.SetTimestamp(now)
	record.SetObservedTimestamp(now)
	record.SetSeverity(severityOf(level))
	record.SetSeverityText(string(level))
	record.SetBody(otellog.StringValue(msg))
	record.AddAttributes(toLogAttributes(all)...)

	// The SDK reads the active span from ctx.
	l.emitter.Emit(ctx, record)
}

func severityOf(level observability.LogLevel) otellog.Severity {
	switch level {
	case observability.LogLevelDebug:
		return otellog.SeverityDebug
	case observability.LogLevelWarn:
		return otellog.SeverityWarn
	case observability.LogLevelError:
		return otellog.SeverityError
	default:
		return otellog.SeverityInfo
	}
}

func zapLevel(level observability.LogLevel) zapcore.Level {
	switch level {
	case observability.LogLevelDebug:
		return zapcore.DebugLevel
	case observability.LogLevelWarn:
		return zapcore.WarnLevel
	case observability.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func newConsole(cfg Config) *zap.Logger {
	var encoder zapcore.Encoder
	if cfg.Format == observability.LogFormatText {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(ec)
	}

	return zap.New(
		zapcore.NewCore(encoder, zapcore.AddSync(cfg.Output), zapLevel(cfg.Level)),
		zap.AddCaller(),
		zap.AddCallerSkip(2),
	).With(zap.String("service", cfg.ServiceName))
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

func toLogAttributes(fields []observability.Field) []otellog.KeyValue {
	attrs := make([]otellog.KeyValue, 0, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			attrs = append(attrs, otellog.String(f.Key, v))
		case int:
			attrs = append(attrs, otellog.Int(f.Key, v))
		case int64:
			attrs = append(attrs, otellog.Int64(f.Key, v))
		case float64:
			attrs = append(attrs, otellog.Float64(f.Key, v))
		case bool:
			attrs = append(attrs, otellog.Bool(f.Key, v))
		case time.Duration:
			attrs = append(attrs, otellog.String(f.Key, v.String()))
		case error:
			attrs = append(attrs, otellog.String(f.Key, v.Error()))
		default:
			attrs = append(attrs, otellog.String(f.Key, fmt.Sprint(v)))
		}
	}
	return attrs
}
