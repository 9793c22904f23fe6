package contracts

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind discriminates the messages exchanged between the two services.
// The set is closed: DecodeEnvelope refuses anything else.
type Kind string

const (
	KindOrderCreated  Kind = "OrderCreated"
	KindPaymentResult Kind = "PaymentResult"
)

var ErrMissingMessageID = errors.New("envelope has no message id")

// ErrUnknownKind marks a discriminator outside the closed set above.
func ErrUnknownKind(kind string) error {
	return fmt.Errorf("unknown message kind %q", kind)
}

// OrderCreated is published by the orders service when an order is placed.
type OrderCreated struct {
	OrderID uuid.UUID       `json:"order_id"`
	UserID  string          `json:"user_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// PaymentResult is published by the payments service after the debit attempt.
type PaymentResult struct {
	OrderID uuid.UUID `json:"order_id"`
	Success bool      `json:"success"`
}

// Envelope is the wire unit. MessageID equals the outbox row id of the
// originating service, so redeliveries of the same logical send carry the
// same id and the receiver can deduplicate on it.
type Envelope struct {
	MessageID uuid.UUID       `json:"message_id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a typed message. The payload type decides the kind.
func NewEnvelope(messageID uuid.UUID, payload any) (Envelope, error) {
	var kind Kind
	switch payload.(type) {
	case OrderCreated:
		kind = KindOrderCreated
	case PaymentResult:
		kind = KindPaymentResult
	default:
		return Envelope{}, fmt.Errorf("unsupported payload type %T", payload)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Envelope{MessageID: messageID, Kind: kind, Payload: raw}, nil
}

// DecodeEnvelope parses the wire form and validates the dedup key is present.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.MessageID == uuid.Nil {
		return Envelope{}, ErrMissingMessageID
	}
	switch env.Kind {
	case KindOrderCreated, KindPaymentResult:
	default:
		return Envelope{}, ErrUnknownKind(string(env.Kind))
	}
	return env, nil
}

// OrderCreatedPayload unpacks the payload of an OrderCreated envelope.
func (e Envelope) OrderCreatedPayload() (OrderCreated, error) {
	if e.Kind != KindOrderCreated {
		return OrderCreated{}, fmt.Errorf("envelope kind is %s, not %s", e.Kind, KindOrderCreated)
	}
	var msg OrderCreated
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return OrderCreated{}, fmt.Errorf("decode OrderCreated payload: %w", err)
	}
	return msg, nil
}

// PaymentResultPayload unpacks the payload of a PaymentResult envelope.
func (e Envelope) PaymentResultPayload() (PaymentResult, error) {
	if e.Kind != KindPaymentResult {
		return PaymentResult{}, fmt.Errorf("envelope kind is %s, not %s", e.Kind, KindPaymentResult)
	}
	var msg PaymentResult
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return PaymentResult{}, fmt.Errorf("decode PaymentResult payload: %w", err)
	}
	return msg, nil
}
