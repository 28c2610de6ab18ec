package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CusTimeEncoder creates a time encoder that adds the prefix and formats the time.
func CusTimeEncoder(config Config) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(config.Prefix + t.Format(config.TimeFormat))
	}
}

// GetEncoder returns a zapcore.Encoder based on the config format.
func GetEncoder(config Config) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     CusTimeEncoder(config),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if config.Format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// getZapCores builds one core per level at or above config.Level so each
// level lands in its own file. The error core also takes anything more severe.
func getZapCores(config Config) []zapcore.Core {
	cores := make([]zapcore.Core, 0, 4)
	for level := config.TransportLevel(); level <= zapcore.ErrorLevel; level++ {
		cores = append(cores, zapcore.NewCore(GetEncoder(config), getWriteSyncer(config, level.String()), getLevelPriority(level)))
	}
	return cores
}

func getLevelPriority(level zapcore.Level) zap.LevelEnablerFunc {
	if level == zapcore.ErrorLevel {
		return func(l zapcore.Level) bool { return l >= level }
	}
	return func(l zapcore.Level) bool { return l == level }
}
