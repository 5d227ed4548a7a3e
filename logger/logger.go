package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.SugaredLogger

// Init builds the production logger at level ("debug", "info", ...). Unknown levels fall back to info.
func Init(level string) {
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}

// Nop installs a discarding logger unless one is already set. Used by tests.
func Nop() {
	if Log == nil {
		Log = zap.NewNop().Sugar()
	}
}

func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
