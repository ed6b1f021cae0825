package log

import (
	"context"
	"fmt"
)

func (l *BaseLogger) log(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	attrs := attrsToAny(attrsFromFieldSlice(fields))
	switch level {
	case DebugLevel:
		l.slogLogger.Debug(msg, attrs...)
	case InfoLevel:
		l.slogLogger.Info(msg, attrs...)
	case WarnLevel:
		l.slogLogger.Warn(msg, attrs...)
	case ErrorLevel, FatalLevel:
		l.slogLogger.Error(msg, attrs...)
	}
}

// Debug logs at DebugLevel.
func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }

// Info logs at InfoLevel.
func (l *BaseLogger) Info(msg string, fields ...Field) { l.log(InfoLevel, msg, fields) }

// Warn logs at WarnLevel.
func (l *BaseLogger) Warn(msg string, fields ...Field) { l.log(WarnLevel, msg, fields) }

// Error logs at ErrorLevel.
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// Fatal logs at FatalLevel. Unlike most frameworks this does not exit the
// process; callers that want that behavior should do so explicitly.
func (l *BaseLogger) Fatal(msg string, fields ...Field) { l.log(FatalLevel, msg, fields) }

func (l *BaseLogger) Debugf(msg string, args ...interface{}) { l.log(DebugLevel, fmt.Sprintf(msg, args...), nil) }
func (l *BaseLogger) Infof(msg string, args ...interface{})  { l.log(InfoLevel, fmt.Sprintf(msg, args...), nil) }
func (l *BaseLogger) Warnf(msg string, args ...interface{})  { l.log(WarnLevel, fmt.Sprintf(msg, args...), nil) }
func (l *BaseLogger) Errorf(msg string, args ...interface{}) { l.log(ErrorLevel, fmt.Sprintf(msg, args...), nil) }
func (l *BaseLogger) Fatalf(msg string, args ...interface{}) { l.log(FatalLevel, fmt.Sprintf(msg, args...), nil) }

func (l *BaseLogger) clone() *BaseLogger {
	nl := *l
	nl.fields = make(Fields, len(l.fields))
	for k, v := range l.fields {
		nl.fields[k] = v
	}
	return &nl
}

// WithField returns a derived Logger with one additional field.
func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	return l.With(Field{Key: key, Value: value})
}

// WithFields returns a derived Logger with the given fields merged in.
func (l *BaseLogger) WithFields(fields Fields) Logger {
	fs := make([]Field, 0, len(fields))
	for k, v := range fields {
		fs = append(fs, Field{Key: k, Value: v})
	}
	return l.With(fs...)
}

// WithError returns a derived Logger carrying err under the "error" key.
func (l *BaseLogger) WithError(err error) Logger {
	return l.With(Err(err))
}

// With returns a derived Logger with the given fields attached to every
// subsequent log call.
func (l *BaseLogger) With(fields ...Field) Logger {
	nl := l.clone()
	for _, f := range fields {
		nl.fields[f.Key] = f.Value
	}
	attrs := attrsFromFieldSlice(fields)
	nl.slogLogger = nl.slogLogger.With(attrsToAny(attrs)...)
	return nl
}

// WithContext returns a derived Logger carrying request-scoped fields
// extracted from ctx (request id, trace id, span id, component, operation).
func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	fields := ContextExtractor(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.WithFields(fields)
}

// WithComponent tags the logger with a component name.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

// SetLevel sets the minimum level this logger (and loggers derived via
// With*) will emit.
func (l *BaseLogger) SetLevel(level Level) { l.level = level }

// GetLevel returns the current minimum log level.
func (l *BaseLogger) GetLevel() Level { return l.level }
