package logger

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// root logger
var log atomic.Pointer[Logger]

// ValidLogLevels lists the level names accepted by NewLogger and SetLevel.
var ValidLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// LoggingConfig is the subset of the logging configuration needed to build component loggers.
// It is satisfied by *config.LoggingConfig.
type LoggingConfig interface {
	GetComponentLevel(component string) string
	GetDefaultLevel() string
	IsDevelopment() bool
}

// FileOutput describes a rotating JSON log file written next to the console output.
type FileOutput struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// fileConfig is implemented by logging configurations that can route logs to a file.
type fileConfig interface {
	GetFileOutput() *FileOutput
}

// Component loggers writing to the same path share one rotating writer.
var (
	filesMu sync.Mutex
	files   = make(map[string]*lumberjack.Logger)
)

func fileWriter(out *FileOutput) zapcore.WriteSyncer {
	filesMu.Lock()
	defer filesMu.Unlock()

	w, ok := files[out.Path]
	if !ok {
		w = &lumberjack.Logger{
			Filename:   out.Path,
			MaxSize:    out.MaxSizeMB,
			MaxBackups: out.MaxBackups,
			MaxAge:     out.MaxAgeDays,
			Compress:   out.Compress,
		}
		files[out.Path] = w
	}
	return zapcore.AddSync(w)
}

// Logger wraps zap.SugaredLogger to provide a consistent logging interface across the project.
// It provides both structured logging (with fields) and printf-style logging methods.
// Child loggers created with WithComponent share the parent's level.
type Logger struct {
	*zap.SugaredLogger

	atomicLevel zap.AtomicLevel
	component   string
}

// NewLogger creates a new logger with the specified configuration.
// level can be "debug", "info", "warn", "error"
// development mode enables stack traces and uses console encoder
func NewLogger(level string, development bool) (*Logger, error) {
	var config zap.Config

	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	atomicLevel := zap.NewAtomicLevelAt(zapLevel)
	config.Level = atomicLevel

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{SugaredLogger: zapLogger.Sugar(), atomicLevel: atomicLevel}, nil
}

// NewLoggerWithFile is NewLogger that also writes every entry as JSON to the
// rotating file described by out. A nil out or an empty path writes no file.
func NewLoggerWithFile(level string, development bool, out *FileOutput) (*Logger, error) {
	l, err := NewLogger(level, development)
	if err != nil || out == nil || out.Path == "" {
		return l, err
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		fileWriter(out),
		l.atomicLevel,
	)
	zapLogger := l.Desugar().WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))

	return &Logger{SugaredLogger: zapLogger.Sugar(), atomicLevel: l.atomicLevel}, nil
}

// NewNopLogger creates a no-op logger that discards all logs.
// Useful for testing.
func NewNopLogger() *Logger {
	return &Logger{
		SugaredLogger: zap.NewNop().Sugar(),
		atomicLevel:   zap.NewAtomicLevelAt(zapcore.FatalLevel),
	}
}

// NewComponentLogger creates a logger tagged with the given component.
// It panics if level is not a valid log level.
func NewComponentLogger(component, level string, development bool) *Logger {
	return newComponentLogger(component, level, development, nil)
}

func newComponentLogger(component, level string, development bool, out *FileOutput) *Logger {
	l, err := NewLoggerWithFile(level, development, out)
	if err != nil {
		panic(err)
	}

	return l.WithComponent(component)
}

// NewComponentLoggerFromConfig creates a component logger using the component's configured level.
// A nil config yields an info level production logger. Configurations that provide a
// FileOutput also get the rotating log file.
func NewComponentLoggerFromConfig(component string, cfg LoggingConfig) *Logger {
	if cfg == nil || isNilConfig(cfg) {
		return NewComponentLogger(component, "info", false)
	}

	level := cfg.GetComponentLevel(component)
	if level == "" {
		level = cfg.GetDefaultLevel()
	}
	if level == "" {
		level = "info"
	}

	var out *FileOutput
	if fc, ok := cfg.(fileConfig); ok {
		out = fc.GetFileOutput()
	}

	return newComponentLogger(component, level, cfg.IsDevelopment(), out)
}

// WithComponent creates a child logger with a component name field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		SugaredLogger: l.With("component", component),
		atomicLevel:   l.atomicLevel,
		component:     component,
	}
}

// WithIndex tags the logger with the name of the index it serves.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{
		SugaredLogger: l.With("index", name),
		atomicLevel:   l.atomicLevel,
		component:     l.component,
	}
}

// GetComponent returns the component name, or an empty string for the root logger.
func (l *Logger) GetComponent() string {
	return l.component
}

// GetLevel returns the current log level name.
func (l *Logger) GetLevel() string {
	return l.atomicLevel.Level().String()
}

// SetLevel changes the log level of this logger and every logger derived from it.
func (l *Logger) SetLevel(level string) error {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}

	l.atomicLevel.SetLevel(zapLevel)
	return nil
}

// Close flushes any buffered log entries.
func (l *Logger) Close() error {
	return l.Sync()
}

// GetDefaultLogger returns the root logger, creating a debug development logger on first use.
func GetDefaultLogger() *Logger {
	l := log.Load()
	if l != nil {
		return l
	}
	// default level: debug
	zapLogger, err := NewLogger("debug", true)
	if err != nil {
		panic(err)
	}
	log.CompareAndSwap(nil, zapLogger)
	return log.Load()
}

// SetDefaultLogger replaces the root logger returned by GetDefaultLogger.
func SetDefaultLogger(l *Logger) {
	log.Store(l)
}

type nilChecker interface {
	IsNil() bool
}

// isNilConfig catches typed nil pointers stored in the interface.
func isNilConfig(cfg LoggingConfig) bool {
	if c, ok := cfg.(nilChecker); ok {
		return c.IsNil()
	}
	return false
}
