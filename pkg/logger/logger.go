package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config содержит настройки логгера.
type Config struct {
	Level      string // debug, info, warn, error
	Encoding   string // json или console
	OutputPath string // пусто = stdout
}

// New собирает zap.Logger по конфигурации.
func New(cfg Config) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = "stdout"
	}

	zapConfig := zap.Config{
		Level:             parseLevel(cfg.Level),
		DisableCaller:     true,
		DisableStacktrace: true,
		Encoding:          parseEncoding(cfg.Encoding),
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{outputPath},
		ErrorOutputPaths:  []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func parseLevel(raw string) zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		name = "info"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		// логгера еще нет, пишем в stderr
		fmt.Fprintf(os.Stderr, "Invalid log level '%s', using 'info'. Error: %v\n", raw, err)
		level.SetLevel(zap.InfoLevel)
	}
	return level
}

func parseEncoding(raw string) string {
	if strings.ToLower(raw) == "console" {
		return "console"
	}
	return "json"
}
