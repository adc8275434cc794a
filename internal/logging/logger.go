package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const DefaultBufferSize = 1000

type Logger struct {
	buffer     *Buffer
	output     *log.Logger
	minLevel   Level
	baseFields map[string]string
}

func NewLogger(buffer *Buffer, minLevel Level) *Logger {
	return NewLoggerWithOutput(buffer, minLevel, os.Stdout)
}

func NewLoggerWithOutput(buffer *Buffer, minLevel Level, output io.Writer) *Logger {
	if buffer == nil {
		buffer = NewBuffer(DefaultBufferSize)
	}
	if output == nil {
		output = io.Discard
	}
	return &Logger{
		buffer:   buffer,
		output:   log.New(output, "", log.LstdFlags),
		minLevel: normalizeLevel(minLevel),
	}
}

func (logger *Logger) Buffer() *Buffer {
	if logger == nil {
		return nil
	}
	return logger.buffer
}

// With returns a derived logger that attaches fields to every entry.
func (logger *Logger) With(fields map[string]string) *Logger {
	if logger == nil {
		return logger
	}
	return &Logger{
		buffer:     logger.buffer,
		output:     logger.output,
		minLevel:   logger.minLevel,
		baseFields: mergeFields(logger.baseFields, fields),
	}
}

func (logger *Logger) Debug(message string, fields map[string]string) {
	logger.log(LevelDebug, message, fields)
}

func (logger *Logger) Info(message string, fields map[string]string) {
	logger.log(LevelInfo, message, fields)
}

func (logger *Logger) Warn(message string, fields map[string]string) {
	logger.log(LevelWarning, message, fields)
}

func (logger *Logger) Error(message string, fields map[string]string) {
	logger.log(LevelError, message, fields)
}

func (logger *Logger) Enabled(level Level) bool {
	if logger == nil {
		return false
	}
	return levelRank(level) >= levelRank(logger.minLevel)
}

func (logger *Logger) log(level Level, message string, fields map[string]string) {
	if logger == nil || !logger.Enabled(level) {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Fields:    mergeFields(logger.baseFields, fields),
	}
	if logger.buffer != nil {
		logger.buffer.Add(entry)
	}
	if logger.output != nil {
		logger.output.Print(FormatEntry(entry))
	}
}

func NewNop() *Logger {
	return NewLoggerWithOutput(NewBuffer(1), LevelError, io.Discard)
}

func normalizeLevel(level Level) Level {
	switch level {
	case LevelDebug, LevelInfo, LevelWarning, LevelError:
		return level
	default:
		return LevelInfo
	}
}

func levelRank(level Level) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

func ParseLevel(value string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warning", "warn":
		return LevelWarning, true
	case "error":
		return LevelError, true
	default:
		return "", false
	}
}

func mergeFields(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	combined := make(map[string]string, len(base)+len(extra))
	for key, value := range base {
		combined[key] = value
	}
	for key, value := range extra {
		combined[key] = value
	}
	return combined
}

// FormatEntry renders one entry in the logfmt-style line form, fields sorted
// by key.
func FormatEntry(entry Entry) string {
	builder := strings.Builder{}
	builder.WriteString("level=")
	builder.WriteString(string(entry.Level))
	builder.WriteString(" msg=")
	builder.WriteString(strconv.Quote(entry.Message))

	if len(entry.Fields) == 0 {
		return builder.String()
	}

	keys := make([]string, 0, len(entry.Fields))
	for key := range entry.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		builder.WriteString(" ")
		builder.WriteString(fmt.Sprintf("%s=%s", key, strconv.Quote(entry.Fields[key])))
	}
	return builder.String()
}
