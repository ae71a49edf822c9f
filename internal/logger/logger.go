// Package logger builds the zap logger shared by the server and its services.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects what the logger emits and where.
type Options struct {
	Level   string // debug, info, warn or error; anything else is info
	Format  string // json or console
	Service string
	// Output defaults to stdout.
	Output io.Writer
}

// New builds a logger writing one entry per line. JSON output is sampled
// and carries ISO8601 timestamps for log shippers; console output is for
// local runs and adds stack traces to errors.
func New(opts Options) *zap.Logger {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level < zapcore.DebugLevel || level > zapcore.ErrorLevel {
		level = zapcore.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	sink := zapcore.Lock(zapcore.AddSync(out))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var core zapcore.Core
	zapOpts := []zap.Option{zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if strings.EqualFold(opts.Format, "console") {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, level)
		zapOpts = append(zapOpts, zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level)
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
	}

	fields := []zap.Field{zap.Int("pid", os.Getpid())}
	if opts.Service != "" {
		fields = append(fields, zap.String("service_name", opts.Service))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		fields = append(fields, zap.String("hostname", hostname))
	}
	return zap.New(core, zapOpts...).With(fields...)
}

// ShortKey trims a relationship key or token for log output.
func ShortKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:12]
}
