package events

// Topic constants for domain events emitted by the payments platform.
const (
	TopicPaymentCreated   = "payment.created"
	TopicPaymentCompleted = "payment.completed"
	TopicPaymentFailed    = "payment.failed"
	TopicOrderPaid        = "order.paid"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicPaymentCreated,
		TopicPaymentCompleted,
		TopicPaymentFailed,
		TopicOrderPaid,
	}
}
