package cli

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the process logger on stderr. ndjson runs log json so
// stderr stays machine-readable; text runs use the console encoder.
func newLogger(globals *Globals, runID string) *zap.Logger {
	if globals == nil || globals.Quiet || globals.Stderr == nil {
		return zap.NewNop()
	}

	level := zap.NewAtomicLevelAt(zap.WarnLevel)
	if l, err := zapcore.ParseLevel(globals.Level); err == nil {
		level.SetLevel(l)
	}
	if globals.Verbose {
		level.SetLevel(zap.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if globals.Format == "ndjson" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(globals.Stderr), level)
	return zap.New(core).With(zap.String("run_id", runID))
}
