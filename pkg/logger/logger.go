// Package logger is the process-wide slog setup.
//
// Handlers attached per request carry the request id, so handler code logs
// through WithCtx:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("order placed", "order_id", o.ID, "token", o.TokenNumber)
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/campusbite/canteen/config"
)

var L *slog.Logger

var (
	closersMu sync.Mutex
	closers   []func()
)

func init() {
	L = slog.New(consoleHandler(os.Stdout))
	slog.SetDefault(L)
}

func level() slog.Level {
	switch config.AppEnv() {
	case "production", "prod":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func consoleHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: level()}
	switch config.AppEnv() {
	case "production", "prod":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

// Setup attaches the optional sinks configured by LOG_FILE and LOG_MONGO_URI.
// The console handler is always kept. Call Close on shutdown.
func Setup() {
	handlers := []slog.Handler{consoleHandler(os.Stdout)}

	if path := config.LogFile(); path != "" {
		rot := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(rot, &slog.HandlerOptions{Level: level()}))
		addCloser(func() { _ = rot.Close() })
	}

	if uri := config.LogMongoURI(); uri != "" {
		mh, err := NewMongoHandler(uri, config.Get("LOG_MONGO_DB", "canteen"), "logs", level())
		if err != nil {
			L.Warn("logger: mongo sink disabled", "error", err)
		} else {
			handlers = append(handlers, mh)
			addCloser(mh.Close)
		}
	}

	if len(handlers) == 1 {
		L = slog.New(handlers[0])
	} else {
		L = slog.New(NewMultiHandler(handlers...))
	}
	slog.SetDefault(L)
}

// Close flushes and releases every sink opened by Setup.
func Close() {
	closersMu.Lock()
	defer closersMu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	closers = nil
}

func addCloser(fn func()) {
	closersMu.Lock()
	closers = append(closers, fn)
	closersMu.Unlock()
}

type ctxKey struct{}

// WithCtx returns the request-scoped logger stored by the Logger middleware,
// or the base logger.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores log into ctx.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
