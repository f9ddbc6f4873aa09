package logger

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogFile is used until configuration has been loaded.
const DefaultLogFile = "mod-catalog.log"

var (
	Log       *zap.SugaredLogger = zap.NewNop().Sugar()
	ZapLogger *zap.Logger        = zap.NewNop() // Expose the raw zap Logger
)

// EncoderConfig is the console layout shared by every core this package builds.
func EncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "T", // Keep time key brief
		LevelKey:         "L",
		NameKey:          "N",
		CallerKey:        "",              // Disable caller key
		FunctionKey:      zapcore.OmitKey, // Disable function key
		MessageKey:       "M",
		StacktraceKey:    "S",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,                        // INFO, WARN, etc.
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"), // Simpler time format
		EncodeDuration:   zapcore.SecondsDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: "  ",
	}
}

// InitLogger points the global logger at path. Calling it again (after the
// config names a different LOG_FILE) swaps the core.
func InitLogger(path string) {
	logFile, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("can't open log file: %v", err)
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(EncoderConfig()),
		zapcore.AddSync(logFile),
		zap.InfoLevel,
	)

	Sync()
	ZapLogger = zap.New(core).Named("mod-catalog")
	Log = ZapLogger.Sugar()
	Log.Infow("Logger initialized", zap.String("file", path))
}

// Named returns a child of the global logger for a library component.
func Named(name string) *zap.SugaredLogger {
	return Log.Named(name)
}

func Sync() {
	if ZapLogger != nil {
		_ = ZapLogger.Sync() // flushes buffer, if any
	}
}
