package localuser

import "context"

// LogNotifier is the default Notifier. It records the notification instead of
// delivering it, which keeps development setups working without a mail
// transport.
type LogNotifier struct {
	logger Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger Logger) *LogNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, msg NotificationMessage) error {
	n.logger.Info("notification dispatched", "to", msg.To, "subject", msg.Subject)
	return nil
}

// dispatchNotification delivers fire-and-forget. A notifier failure is
// logged, it never reaches the caller.
func dispatchNotification(ctx context.Context, notifier Notifier, logger Logger, msg NotificationMessage) {
	if notifier == nil {
		return
	}

	if err := notifier.Send(ctx, msg); err != nil && logger != nil {
		logger.Error("notifier send failed", "to", msg.To, "error", err)
	}
}
