package contracts

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDecodeEnvelope_RejectsMissingMessageID(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"kind":    KindOrderCreated,
		"payload": json.RawMessage(`{}`),
	})
	_, err := DecodeEnvelope(raw)
	assert.ErrorIs(t, err, ErrMissingMessageID)
}

func TestDecodeEnvelope_RejectsUnknownKind(t *testing.T) {
	raw, _ := json.Marshal(map[string]any{
		"message_id": uuid.New(),
		"kind":       "OrderShipped",
		"payload":    json.RawMessage(`{}`),
	})
	_, err := DecodeEnvelope(raw)
	assert.Error(t, err)
}

func TestNewEnvelope_RejectsForeignPayload(t *testing.T) {
	_, err := NewEnvelope(uuid.New(), struct{ X int }{1})
	assert.Error(t, err)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	id := uuid.New()
	env, err := NewEnvelope(id, OrderCreated{
		OrderID: uuid.New(),
		UserID:  "alice",
		Amount:  decimal.RequireFromString("19.99"),
	})
	assert.NoError(t, err)
	assert.Equal(t, KindOrderCreated, env.Kind)

	wire, err := json.Marshal(env)
	assert.NoError(t, err)

	decoded, err := DecodeEnvelope(wire)
	assert.NoError(t, err)
	assert.Equal(t, id, decoded.MessageID)

	msg, err := decoded.OrderCreatedPayload()
	assert.NoError(t, err)
	assert.Equal(t, "alice", msg.UserID)
	assert.True(t, msg.Amount.Equal(decimal.RequireFromString("19.99")))

	// the payload accessor for the other kind refuses
	_, err = decoded.PaymentResultPayload()
	assert.Error(t, err)
}
