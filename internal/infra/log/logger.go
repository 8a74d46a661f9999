package log

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger        // file (all levels)
var consoleLogger *zap.Logger // human status lines (SUCCESS and ERROR)
var mu sync.RWMutex

func init() {
	// Console only until Init is called with a log directory.
	cl, err := buildConsoleLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize console logger: %v\n", err)
		cl = zap.NewNop()
	}
	consoleLogger = cl
	Logger = zap.NewNop()
}

// Init enables the file sink at dir/app.log.
func Init(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	fileConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}

	fileCore := zapcore.NewCore(
		&customFileEncoder{Encoder: zapcore.NewConsoleEncoder(fileConfig)},
		getLogFileWriter(filepath.Join(dir, "app.log")),
		zapcore.DebugLevel,
	)

	mu.Lock()
	Logger = zap.New(fileCore)
	mu.Unlock()
	return nil
}

// SetLoggers replaces both sinks. Tests use it with zaptest/observer cores.
func SetLoggers(file, console *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	Logger = file
	consoleLogger = console
}

// Sync flushes both sinks; called on shutdown.
func Sync() {
	file, console := loggers()
	_ = file.Sync()
	_ = console.Sync()
}

func loggers() (*zap.Logger, *zap.Logger) {
	mu.RLock()
	defer mu.RUnlock()
	return Logger, consoleLogger
}

func buildConsoleLogger() (*zap.Logger, error) {
	consoleConfig := zap.NewDevelopmentConfig()
	consoleConfig.EncoderConfig.EncodeLevel = customLevelEncoder
	consoleConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	consoleConfig.EncoderConfig.EncodeCaller = nil
	consoleConfig.Development = false
	consoleConfig.DisableStacktrace = true
	consoleConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	l, err := consoleConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build console logger: %w", err)
	}
	return l, nil
}

// NewCycleID returns an id tagging every line of one snapshot cycle.
func NewCycleID() string {
	return uuid.NewString()
}

// GenerateRequestID ID for HTTP requests
func GenerateRequestID() string {
	return uuid.NewString()[:8]
}

// CycleField tags a log line with its cycle id.
func CycleField(cycleID string) zap.Field {
	return zap.String("cycle_id", cycleID)
}

// LogRequest HTTP request line, file only
func LogRequest(requestID, method, endpoint string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("endpoint", endpoint),
	}, fields...)
	file, _ := loggers()
	file.Info("HTTP request", allFields...)
}

// LogResponse HTTP response line; failures are also shown on the console
func LogResponse(requestID string, statusCode int, durationMs int64, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("request_id", requestID),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", durationMs),
	}, fields...)

	file, console := loggers()
	if statusCode >= 200 && statusCode < 300 {
		file.Info("HTTP response", allFields...)
		return
	}

	file.Error("HTTP response", allFields...)
	if endpointStr := fieldsToString(fields); endpointStr != "" {
		console.Error(fmt.Sprintf("✗ HTTP request failed [%d] %s", statusCode, endpointStr))
	} else {
		console.Error(fmt.Sprintf("✗ HTTP request failed [%d]", statusCode))
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(colorCyan + "DEBUG" + colorReset)
	case zapcore.InfoLevel:
		enc.AppendString(colorGreen + "SUCCESS" + colorReset) // console INFO is SUCCESS
	case zapcore.WarnLevel:
		enc.AppendString(colorYellow + "WARN" + colorReset)
	case zapcore.ErrorLevel:
		enc.AppendString(colorRed + "ERROR" + colorReset)
	case zapcore.FatalLevel:
		enc.AppendString(colorRed + "FATAL" + colorReset)
	case zapcore.PanicLevel:
		enc.AppendString(colorRed + "PANIC" + colorReset)
	default:
		enc.AppendString(colorWhite + level.String() + colorReset)
	}
}

// LogInfo file only
func LogInfo(message string, fields ...zap.Field) {
	file, _ := loggers()
	file.Info(message, fields...)
}

// LogSuccess file and console
func LogSuccess(message string, fields ...zap.Field) {
	file, console := loggers()
	file.Info(message, fields...)

	if durationMs := extractDuration(fields); durationMs > 0 {
		console.Info(fmt.Sprintf("✓ %s (%dms)", message, durationMs))
	} else {
		console.Info("✓ " + message)
	}
}

// LogError file and console
func LogError(message string, fields ...zap.Field) {
	file, console := loggers()
	file.Error(message, fields...)

	suffix := ""
	if errText := extractError(fields); errText != "" {
		suffix = ": " + errText
	}
	if durationMs := extractDuration(fields); durationMs > 0 {
		console.Error(fmt.Sprintf("✗ %s%s (%dms)", message, suffix, durationMs))
	} else {
		console.Error("✗ " + message + suffix)
	}
}

// LogWarn file only
func LogWarn(message string, fields ...zap.Field) {
	file, _ := loggers()
	file.Warn(message, fields...)
}

// LogDebug file only
func LogDebug(message string, fields ...zap.Field) {
	file, _ := loggers()
	file.Debug(message, fields...)
}

// extractDuration duration_ms from zap fields
func extractDuration(fields []zap.Field) int64 {
	for _, field := range fields {
		if field.Key == "duration_ms" && field.Type == zapcore.Int64Type {
			return field.Integer
		}
	}
	return 0
}

func extractError(fields []zap.Field) string {
	for _, field := range fields {
		if field.Type != zapcore.ErrorType || field.Interface == nil {
			continue
		}
		if err, ok := field.Interface.(error); ok {
			return err.Error()
		}
	}
	return ""
}

// fieldsToString endpoint field for console lines
func fieldsToString(fields []zap.Field) string {
	for _, field := range fields {
		if field.Key == "endpoint" {
			return field.String
		}
	}
	return ""
}

const (
	// MaxLogFileSize - file is truncated past 50MB
	MaxLogFileSize = 50 * 1024 * 1024
)

type rotatingLogWriter struct {
	file *os.File
	path string
	mu   sync.Mutex
}

func (w *rotatingLogWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := w.file.Stat()
	if err == nil && info.Size() > MaxLogFileSize {
		w.file.Close()

		w.file, err = os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return 0, fmt.Errorf("failed to truncate log file: %w", err)
		}
	}

	return w.file.Write(p)
}

func (w *rotatingLogWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// getLogFileWriter append-mode writer, truncated when oversized
func getLogFileWriter(path string) zapcore.WriteSyncer {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v, falling back to stderr\n", path, err)
		return zapcore.AddSync(os.Stderr)
	}

	info, err := file.Stat()
	if err == nil && info.Size() > MaxLogFileSize {
		file.Close()
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to truncate log file %s: %v, falling back to stderr\n", path, err)
			return zapcore.AddSync(os.Stderr)
		}
	}

	return zapcore.AddSync(&rotatingLogWriter{file: file, path: path})
}

// customFileEncoder "time     LEVEL msg\t{json fields}"
type customFileEncoder struct {
	zapcore.Encoder
}

func (e *customFileEncoder) Clone() zapcore.Encoder {
	return &customFileEncoder{Encoder: e.Encoder.Clone()}
}

var bufferPool = buffer.NewPool()

func (e *customFileEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf := bufferPool.Get()

	buf.AppendString(entry.Time.Format("2006-01-02 15:04:05"))
	buf.AppendString("     ")
	buf.AppendString(entry.Level.CapitalString())
	buf.AppendString(" ")
	buf.AppendString(entry.Message)

	if len(fields) > 0 {
		buf.AppendString("\t")
		if jsonData, err := json.Marshal(fieldMap(fields)); err == nil {
			buf.AppendString(string(jsonData))
		}
	}

	buf.AppendString("\n")
	return buf, nil
}

func fieldMap(fields []zapcore.Field) map[string]interface{} {
	m := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		switch field.Type {
		case zapcore.StringType:
			m[field.Key] = field.String
		case zapcore.Int64Type, zapcore.Int32Type:
			m[field.Key] = field.Integer
		case zapcore.BoolType:
			m[field.Key] = field.Integer == 1
		case zapcore.Float64Type:
			m[field.Key] = math.Float64frombits(uint64(field.Integer))
		case zapcore.TimeType:
			t := time.Unix(0, field.Integer)
			if loc, ok := field.Interface.(*time.Location); ok {
				t = t.In(loc)
			}
			m[field.Key] = t.Format(time.RFC3339)
		case zapcore.DurationType:
			m[field.Key] = (time.Duration(field.Integer)).String()
		case zapcore.ErrorType:
			if err, ok := field.Interface.(error); ok && err != nil {
				m[field.Key] = err.Error()
			}
		default:
			if field.Interface != nil {
				m[field.Key] = field.Interface
			} else {
				m[field.Key] = field.Integer
			}
		}
	}
	return m
}
