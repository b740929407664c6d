package session

import "go.uber.org/zap"

// Level of a notification.
type Level int

const (
	Info Level = iota
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notification is a transient user-visible message.
type Notification struct {
	Level   Level
	Message string
	Err     error
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Log *zap.Logger
}

func (l LogNotifier) Notify(n Notification) {
	fields := []zap.Field{zap.String("level", n.Level.String())}
	if n.Err != nil {
		fields = append(fields, zap.Error(n.Err))
	}
	switch n.Level {
	case Error:
		l.Log.Error(n.Message, fields...)
	case Warn:
		l.Log.Warn(n.Message, fields...)
	default:
		l.Log.Info(n.Message, fields...)
	}
}
