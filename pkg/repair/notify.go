package repair

import (
	"context"

	"github.com/charmbracelet/log"
)

// Level is the severity of a Notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Notice is a user-visible message about a repair outcome.
type Notice struct {
	Level   Level
	Source  string
	Message string
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	switch n.Level {
	case LevelError:
		logger.Error(n.Message)
	case LevelWarn:
		logger.Warn(n.Message)
	default:
		logger.Info(n.Message)
	}
}
