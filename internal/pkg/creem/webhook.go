package creem

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// SignatureHeader carries the webhook HMAC signature
const SignatureHeader = "creem-signature"

// Webhook event types
const (
	EventCheckoutCompleted = "checkout.completed"
	EventRefundCreated     = "refund.created"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// WebhookEvent is a parsed Creem webhook notification
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"eventType"`
	Object    json.RawMessage `json:"object"`
}

// CheckoutObject is the payload of checkout.* events
type CheckoutObject struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Order     struct {
		ID     string `json:"id"`
		Amount int64  `json:"amount"`
		Status string `json:"status"`
	} `json:"order"`
	Product struct {
		ID string `json:"id"`
	} `json:"product"`
	Customer struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"customer"`
	Metadata map[string]string `json:"metadata"`
}

// Sign computes the hex HMAC-SHA256 of payload with the webhook secret
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the webhook signature in constant time
func VerifySignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := Sign(payload, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// ParseEvent verifies the signature and decodes the event
func ParseEvent(payload []byte, signature, secret string) (*WebhookEvent, error) {
	if !VerifySignature(payload, signature, secret) {
		return nil, ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if event.EventType == "" {
		return nil, fmt.Errorf("%w: missing eventType", ErrMalformedPayload)
	}
	return &event, nil
}

// Checkout decodes the event object as a checkout
func (e *WebhookEvent) Checkout() (*CheckoutObject, error) {
	var checkout CheckoutObject
	if err := json.Unmarshal(e.Object, &checkout); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &checkout, nil
}
