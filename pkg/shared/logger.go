package shared

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log output formats accepted by NewLogger.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
	LogFormatLogfmt  = "logfmt"
)

// LogOptions controls logger construction.
type LogOptions struct {
	Verbose bool
	Format  string
}

// NewLogger builds the process logger writing to stderr. Verbose output is
// logged at debug level; otherwise info. The default format is console when
// verbose and JSON otherwise.
func NewLogger(options LogOptions) (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	level := zapcore.InfoLevel
	if options.Verbose {
		level = zapcore.DebugLevel
	}

	format := strings.ToLower(strings.TrimSpace(options.Format))
	if format == "" {
		format = LogFormatJSON
		if options.Verbose {
			format = LogFormatConsole
		}
	}

	var encoder zapcore.Encoder
	switch format {
	case LogFormatConsole:
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case LogFormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case LogFormatLogfmt:
		encoder = zaplogfmt.NewEncoder(encoderConfig)
	default:
		return nil, errors.Errorf("unsupported log format %q", options.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// LoggerOrNop returns logger, or a no-op logger when it is nil.
func LoggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
