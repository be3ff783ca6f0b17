package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Level はログレベルを表す
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel は文字列からログレベルを解析する
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug", "trace":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Format は出力形式を表す
type Format string

const (
	FormatText   Format = "text"
	FormatLogfmt Format = "logfmt"
	FormatJSON   Format = "json"
)

// ParseFormat は文字列から出力形式を解析する
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatLogfmt, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q", s)
	}
}

func (f Format) formatter() log.Formatter {
	switch f {
	case FormatLogfmt:
		return log.LogfmtFormatter
	case FormatJSON:
		return log.JSONFormatter
	default:
		return log.TextFormatter
	}
}

// Options はロガーの設定
type Options struct {
	Level  Level
	Format Format
}

// Logger はスレッドセーフなロガー
type Logger struct {
	base     *log.Logger
	minLevel atomic.Int32
}

// Default はデフォルトのロガー
var Default = New(os.Stderr, LevelInfo)

// New はテキスト形式の新しいロガーを作成する
func New(out io.Writer, minLevel Level) *Logger {
	return NewWithOptions(out, Options{Level: minLevel, Format: FormatText})
}

// NewWithOptions は設定を指定してロガーを作成する
func NewWithOptions(out io.Writer, opts Options) *Logger {
	l := &Logger{
		base: log.NewWithOptions(out, log.Options{
			Level:           log.DebugLevel,
			ReportTimestamp: true,
			TimeFormat:      "2006-01-02 15:04:05.000",
			Formatter:       opts.Format.formatter(),
		}),
	}
	l.minLevel.Store(int32(opts.Level))
	return l
}

// SetLevel はログレベルを設定する
func (l *Logger) SetLevel(level Level) {
	l.minLevel.Store(int32(level))
}

// Reconfigure は出力先、形式、レベルをまとめて変更する
func (l *Logger) Reconfigure(out io.Writer, opts Options) {
	l.base.SetOutput(out)
	l.base.SetFormatter(opts.Format.formatter())
	l.SetLevel(opts.Level)
}

// Level は現在のログレベルを返す
func (l *Logger) Level() Level {
	return Level(l.minLevel.Load())
}

// log は指定されたレベルでログを出力する
func (l *Logger) log(level Level, id string, format string, args ...any) {
	if level < l.Level() {
		return
	}

	msg := fmt.Sprintf(format, args...)
	var keyvals []any
	if id != "" {
		keyvals = []any{"id", id}
	}

	switch level {
	case LevelDebug:
		l.base.Debug(msg, keyvals...)
	case LevelInfo:
		l.base.Info(msg, keyvals...)
	case LevelWarn:
		l.base.Warn(msg, keyvals...)
	default:
		l.base.Error(msg, keyvals...)
	}
}

// Debug はデバッグログを出力する
func (l *Logger) Debug(id string, format string, args ...any) {
	l.log(LevelDebug, id, format, args...)
}

// Info は情報ログを出力する
func (l *Logger) Info(id string, format string, args ...any) {
	l.log(LevelInfo, id, format, args...)
}

// Warn は警告ログを出力する
func (l *Logger) Warn(id string, format string, args ...any) {
	l.log(LevelWarn, id, format, args...)
}

// Error はエラーログを出力する
func (l *Logger) Error(id string, format string, args ...any) {
	l.log(LevelError, id, format, args...)
}

// グローバル関数（デフォルトロガーを使用）

// Configure はデフォルトロガーの出力先、形式、レベルを変更する
func Configure(out io.Writer, opts Options) {
	Default.Reconfigure(out, opts)
}

// Debug はデバッグログを出力する
func Debug(id string, format string, args ...any) {
	Default.Debug(id, format, args...)
}

// Info は情報ログを出力する
func Info(id string, format string, args ...any) {
	Default.Info(id, format, args...)
}

// Warn は警告ログを出力する
func Warn(id string, format string, args ...any) {
	Default.Warn(id, format, args...)
}

// Error はエラーログを出力する
func Error(id string, format string, args ...any) {
	Default.Error(id, format, args...)
}
