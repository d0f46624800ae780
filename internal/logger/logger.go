package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger представляет интерфейс для логирования в стиле ключ-значение
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	Sync() error
}

// zapLogger реализует Logger поверх zap
type zapLogger struct {
	raw *zap.Logger
	// в prod пишем через быстрый немаршалированный логгер
	useRaw bool
}

// New создает логгер под окружение: "prod" для продакшена, иначе development конфигурация
func New(env string) Logger {
	if env == "prod" {
		return &zapLogger{raw: newProductionLogger(), useRaw: true}
	}
	return &zapLogger{raw: newDevelopmentLogger()}
}

// NewNop логгер, который ничего не пишет. Нужен в тестах
func NewNop() Logger {
	return &zapLogger{raw: zap.NewNop(), useRaw: true}
}

// FromZap оборачивает готовый zap.Logger
func FromZap(raw *zap.Logger) Logger {
	return &zapLogger{raw: raw, useRaw: true}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
}

// newProductionLogger JSON в stderr, уровень Info
func newProductionLogger() *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(os.Stderr),
		zap.NewAtomicLevelAt(zapcore.InfoLevel),
	)

	return zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(2),
		zap.ErrorOutput(zapcore.AddSync(os.Stderr)),
	)
}

// newDevelopmentLogger уровень Debug, стек начиная с Warn.
// stdout занят выводом CLI, поэтому тоже stderr
func newDevelopmentLogger() *zap.Logger {
	cfg := encoderConfig()
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.AddSync(os.Stderr),
		zap.NewAtomicLevelAt(zapcore.DebugLevel),
	)

	return zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(2),
		zap.AddStacktrace(zapcore.WarnLevel),
		zap.Development(),
		zap.ErrorOutput(zapcore.AddSync(os.Stderr)),
	)
}

func (l *zapLogger) Debug(msg string, args ...any) {
	l.log(zapcore.DebugLevel, msg, args)
}

func (l *zapLogger) Info(msg string, args ...any) {
	l.log(zapcore.InfoLevel, msg, args)
}

func (l *zapLogger) Warn(msg string, args ...any) {
	l.log(zapcore.WarnLevel, msg, args)
}

func (l *zapLogger) Error(msg string, args ...any) {
	l.log(zapcore.ErrorLevel, msg, args)
}

// With возвращает дочерний логгер с постоянными полями
func (l *zapLogger) With(args ...any) Logger {
	return &zapLogger{raw: l.raw.With(argsToFields(args)...), useRaw: l.useRaw}
}

// Sync сбрасывает буферы
func (l *zapLogger) Sync() error {
	return l.raw.Sync()
}

func (l *zapLogger) log(level zapcore.Level, msg string, args []any) {
	if !l.useRaw {
		sugar := l.raw.Sugar()
		switch level {
		case zapcore.DebugLevel:
			sugar.Debugw(msg, args...)
		case zapcore.InfoLevel:
			sugar.Infow(msg, args...)
		case zapcore.WarnLevel:
			sugar.Warnw(msg, args...)
		default:
			sugar.Errorw(msg, args...)
		}
		return
	}

	if ce := l.raw.Check(level, msg); ce != nil {
		ce.Write(argsToFields(args)...)
	}
}

// argsToFields преобразует аргументы вида [key1, val1, key2, val2...] в поля zap.Field
func argsToFields(args []any) []zap.Field {
	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue // пропускаем если ключ не строка
		}

		if err, ok := args[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}
