// Package logging construye el logger de zap a partir de la configuracion.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New crea el logger. format es "json" o "console"; verbose fuerza el nivel debug.
func New(levelName, format string, verbose bool) (*zap.Logger, error) {
	var zc zap.Config
	switch format {
	case "json", "":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
		zc.DisableStacktrace = true
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("formato de log desconocido: %s", format)
	}

	level := zapcore.InfoLevel
	if levelName != "" {
		if err := level.Set(levelName); err != nil {
			return nil, fmt.Errorf("nivel de log invalido %q: %w", levelName, err)
		}
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("no se pudo inicializar el logger: %w", err)
	}
	return logger, nil
}

// OrNop devuelve l o un logger vacio si l es nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
