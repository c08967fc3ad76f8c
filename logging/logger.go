package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init builds the process logger. Console output is always on, at Info
// unless verbose asks for Debug. When logDir is non-empty, a rotating
// JSON log file is written there as well.
func Init(logDir string, verbose bool) (*zap.Logger, error) {
	cores := []zapcore.Core{newConsoleCore(verbose)}
	if logDir != "" {
		fileCore, err := newFileCore(logDir)
		if err != nil {
			return nil, err
		}
		cores = append(cores, fileCore)
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// newFileCore creates a core that writes JSON entries to a rotating file.
func newFileCore(logDir string) (zapcore.Core, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	fileName := filepath.Join(logDir, fmt.Sprintf("%s-hmetad.log", time.Now().Format("2006-01-02")))
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	})
	levelEnabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.DebugLevel
	})
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, levelEnabler), nil
}

// newConsoleCore creates a core that writes to the console.
func newConsoleCore(verbose bool) zapcore.Core {
	minLevel := zapcore.InfoLevel
	if verbose {
		minLevel = zapcore.DebugLevel
	}
	levelEnabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= minLevel
	})
	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig),
		zapcore.AddSync(os.Stdout),
		levelEnabler,
	)
}
