package notifications

// AlertLevel classifies the urgency of an operator notification.
type AlertLevel string

const (
	LevelInfo    AlertLevel = "info"
	LevelWarning AlertLevel = "warning"
	// LevelCritical is reserved for conditions that need immediate operator
	// action, such as a position left without a protective bracket.
	LevelCritical AlertLevel = "critical"
)

// Notifier delivers alerts to an operator channel.
type Notifier interface {
	SendAlert(level AlertLevel, message string) error
}

// NoopNotifier discards all alerts. Used when no channel is configured.
type NoopNotifier struct{}

func (NoopNotifier) SendAlert(level AlertLevel, message string) error { return nil }
