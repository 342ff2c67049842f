package domain

type PaymentStatus string

const (
	StatusPending    PaymentStatus = "PENDING"
	StatusProcessing PaymentStatus = "PROCESSING"
	StatusCompleted  PaymentStatus = "COMPLETED"
	StatusFailed     PaymentStatus = "FAILED"
	StatusCancelled  PaymentStatus = "CANCELLED"
	StatusRefunded   PaymentStatus = "REFUNDED"
)

var transitions = map[PaymentStatus][]PaymentStatus{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:  {StatusRefunded},
	StatusFailed:     {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	st := PaymentStatus(s)
	_, ok := transitions[st]
	return st, ok
}

// CanTransition reports whether a webhook may move a transaction from one status to another.
// Re-applying the current status is accepted so redelivered webhooks stay idempotent.
func CanTransition(from, to PaymentStatus) bool {
	if from == to {
		_, ok := transitions[from]
		return ok
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s PaymentStatus) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}
