package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderSignature = "X-Reviewkit-Signature"
	HeaderTimestamp = "X-Reviewkit-Timestamp"
	HeaderDelivery  = "X-Reviewkit-Delivery"
)

// Signature is the authentication data attached to a signed delivery.
type Signature struct {
	Value      string
	Timestamp  int64
	DeliveryID string
}

// Apply sets the signature headers on h.
func (s Signature) Apply(h http.Header) {
	h.Set(HeaderSignature, s.Value)
	h.Set(HeaderTimestamp, strconv.FormatInt(s.Timestamp, 10))
	h.Set(HeaderDelivery, s.DeliveryID)
}

// Sign computes hex(HMAC-SHA256(secret, "<unix-ts>.<payload>")) for payload.
func Sign(secret string, payload []byte, now time.Time) (Signature, error) {
	if secret == "" {
		return Signature{}, fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return Signature{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	ts := now.Unix()
	return Signature{
		Value:      compute(secret, ts, payload),
		Timestamp:  ts,
		DeliveryID: uuid.NewString(),
	}, nil
}

// Verify checks sig against payload. A positive maxAge also rejects stale
// signatures and ones more than a minute in the future.
func Verify(secret string, payload []byte, sig Signature, maxAge time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if sig.Value == "" {
		return fmt.Errorf("%w: signature is missing", ErrInvalidSignature)
	}

	if maxAge > 0 {
		age := time.Since(time.Unix(sig.Timestamp, 0))
		if age > maxAge {
			return fmt.Errorf("%w: timestamp too old: %v", ErrInvalidSignature, age)
		}
		if age < -time.Minute {
			return fmt.Errorf("%w: timestamp is in the future", ErrInvalidSignature)
		}
	}

	expected := compute(secret, sig.Timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(sig.Value)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}

// ParseSignature reads the signature headers of an incoming request.
func ParseSignature(h http.Header) (Signature, error) {
	sig := Signature{
		Value:      h.Get(HeaderSignature),
		DeliveryID: h.Get(HeaderDelivery),
	}
	raw := h.Get(HeaderTimestamp)
	if sig.Value == "" || raw == "" {
		return Signature{}, fmt.Errorf("%w: missing signature headers", ErrInvalidSignature)
	}

	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("%w: invalid timestamp", ErrInvalidSignature)
	}
	sig.Timestamp = ts
	return sig, nil
}

func compute(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
