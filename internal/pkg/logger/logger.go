package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ILogger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
	// SDK records a callback or lifecycle event of the vital-signs engine.
	SDK(event string, details map[string]interface{})
	// Session records a measurement session lifecycle step.
	Session(action string, details map[string]interface{})
	Sync() error
}

const (
	moduleSDK     = "SDK"
	moduleSession = "Session"
)

type ZapLogger struct {
	logger   *zap.Logger
	filePath string
	sdkLogs  bool
}

type Option func(*options)

type options struct {
	level   string
	sdkLogs bool
}

// WithLevel sets the minimum level: DEBUG, INFO, WARN, ERROR or NONE.
func WithLevel(level string) Option {
	return func(o *options) { o.level = level }
}

// WithSDKLogs toggles the engine event category.
func WithSDKLogs(enabled bool) Option {
	return func(o *options) { o.sdkLogs = enabled }
}

func NewZapLogger(logFilePath string, isProd bool, opts ...Option) *ZapLogger {
	o := options{sdkLogs: true}
	if isProd {
		o.level = "ERROR"
	} else {
		o.level = "DEBUG"
	}
	for _, opt := range opts {
		opt(&o)
	}

	level, enabled := parseLevel(o.level)
	if !enabled {
		return &ZapLogger{logger: zap.NewNop(), filePath: logFilePath, sdkLogs: o.sdkLogs}
	}

	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig())

	fileCore := zapcore.NewCore(
		jsonEncoder,
		zapcore.AddSync(rotator(logFilePath)),
		zap.NewAtomicLevelAt(maxLevel(level, zap.InfoLevel)),
	)

	var consoleEncoder zapcore.Encoder
	if isProd {
		consoleEncoder = jsonEncoder
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	consoleCore := zapcore.NewCore(
		consoleEncoder,
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(level),
	)

	core := zapcore.NewTee(fileCore, consoleCore)
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &ZapLogger{
		logger:   l,
		filePath: logFilePath,
		sdkLogs:  o.sdkLogs,
	}
}

// NewIsolatedLogger creates a logger that only writes to the file, not console.
// Used for the websocket hub and the measurement audit trail.
func NewIsolatedLogger(logFilePath string) *ZapLogger {
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(rotator(logFilePath)),
		zap.InfoLevel,
	)

	return &ZapLogger{
		logger:   zap.New(fileCore, zap.AddCaller(), zap.AddCallerSkip(1)),
		filePath: logFilePath,
		sdkLogs:  true,
	}
}

// NewNopLogger discards everything.
func NewNopLogger() *ZapLogger {
	return &ZapLogger{logger: zap.NewNop()}
}

func rotator(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,   // Megabytes
		MaxBackups: 5,    // Files
		MaxAge:     30,   // Days
		Compress:   true, // gzip
	}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.MessageKey = "message"
	cfg.LevelKey = "level"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func parseLevel(s string) (zapcore.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE", "OFF":
		return zapcore.InfoLevel, false
	case "ERROR":
		return zapcore.ErrorLevel, true
	case "WARN", "WARNING":
		return zapcore.WarnLevel, true
	case "INFO":
		return zapcore.InfoLevel, true
	default:
		return zapcore.DebugLevel, true
	}
}

func maxLevel(a, b zapcore.Level) zapcore.Level {
	if a > b {
		return a
	}
	return b
}

func (l *ZapLogger) Debug(module, message string, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	l.logger.Debug(message, zap.String("module", module), zap.Any("details", details))
}

func (l *ZapLogger) Info(module, message string, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	l.logger.Info(message, zap.String("module", module), zap.Any("details", details))
}

func (l *ZapLogger) Warn(module, message string, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	l.logger.Warn(message, zap.String("module", module), zap.Any("details", details))
}

func (l *ZapLogger) Error(module, message string, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	if err, ok := details["error"]; ok {
		l.logger.Error(message, zap.String("module", module), zap.Any("details", details), zap.Any("error_ref", err))
	} else {
		l.logger.Error(message, zap.String("module", module), zap.Any("details", details))
	}
}

func (l *ZapLogger) SDK(event string, details map[string]interface{}) {
	if !l.sdkLogs {
		return
	}
	l.Info(moduleSDK, event, details)
}

func (l *ZapLogger) Session(action string, details map[string]interface{}) {
	l.Info(moduleSession, action, details)
}

func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
