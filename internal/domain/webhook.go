package domain

import "fmt"

// WebhookNotification is the typed view of a gateway status callback.
// Raw keeps the full payload, including fields this service does not know about.
type WebhookNotification struct {
	TransactionID string
	Status        PaymentStatus
	Raw           map[string]any
}

func ParseWebhookNotification(payload map[string]any) (*WebhookNotification, error) {
	id, _ := payload["transaction_id"].(string)
	rawStatus, _ := payload["status"].(string)
	if id == "" || rawStatus == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrValidation)
	}

	status, ok := ParsePaymentStatus(rawStatus)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, rawStatus)
	}

	return &WebhookNotification{TransactionID: id, Status: status, Raw: payload}, nil
}

type WebhookAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
