// ABOUTME: Logger setup for the coven-adapter CLI
// ABOUTME: Console handler prefixes records with their turn (channel/conversation, activity type); JSON otherwise

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/coven-adapter/internal/config"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.LoggingConfig, out io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = &consoleHandler{
			out:   out,
			mu:    &sync.Mutex{},
			level: level,
		}
	}

	return slog.New(handler)
}

// consoleHandler renders records for a terminal. Turn identity attributes
// (component, channel, conversation, activity type) are lifted out of the
// key=value tail into a prefix so records from one conversation line up.
type consoleHandler struct {
	out   io.Writer
	mu    *sync.Mutex
	level slog.Level
	label turnLabel
	attrs []slog.Attr
	group string
}

// turnLabel holds the lifted attributes. Grouped attributes are never lifted.
type turnLabel struct {
	component    string
	channel      string
	conversation string
	activityType string
}

func (l *turnLabel) lift(key string, v slog.Value) bool {
	switch key {
	case "component":
		l.component = v.String()
	case "channel_id":
		l.channel = v.String()
	case "conversation_id":
		l.conversation = v.String()
	case "activity_type":
		l.activityType = v.String()
	default:
		return false
	}
	return true
}

func (l turnLabel) writeTo(buf *strings.Builder) {
	if l.component != "" {
		buf.WriteString(color.BlueString("[" + l.component + "] "))
	}
	where := l.conversation
	switch {
	case l.channel != "" && where != "":
		where = l.channel + "/" + where
	case l.channel != "":
		where = l.channel
	}
	if where != "" {
		buf.WriteString(color.GreenString(where) + " ")
	}
	if l.activityType != "" {
		buf.WriteString(color.New(color.Bold).Sprint(l.activityType) + " ")
	}
}

func levelBadge(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return color.MagentaString("DBG ")
	case slog.LevelInfo:
		return color.CyanString("INF ")
	case slog.LevelWarn:
		return color.YellowString("WRN ")
	case slog.LevelError:
		return color.New(color.FgRed, color.Bold).Sprint("ERR ")
	default:
		return level.String() + " "
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	label := h.label
	rest := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" || !label.lift(a.Key, a.Value) {
			rest = append(rest, slog.Attr{Key: h.group + a.Key, Value: a.Value})
		}
		return true
	})

	var buf strings.Builder
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))
	buf.WriteString(levelBadge(r.Level))
	label.writeTo(&buf)
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&buf, a)
	}
	for _, a := range rest {
		writeAttr(&buf, a)
	}
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func writeAttr(buf *strings.Builder, a slog.Attr) {
	buf.WriteString(color.HiBlackString(" " + a.Key + "="))
	if a.Key == "error" {
		buf.WriteString(color.RedString("%s", a.Value.String()))
		return
	}
	buf.WriteString(a.Value.String())
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = slices.Clip(h.attrs)
	for _, a := range attrs {
		if h.group == "" && next.label.lift(a.Key, a.Value) {
			continue
		}
		next.attrs = append(next.attrs, slog.Attr{Key: h.group + a.Key, Value: a.Value})
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.group + name + "."
	return &next
}
