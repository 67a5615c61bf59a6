// Package webhook delivers signed JSON payloads over HTTP with retries and
// backoff, and adapts that delivery to the moderation identifier registry.
//
// # Sending
//
//	sender := webhook.NewSender()
//	err := sender.Send(ctx, "https://registry.example.com/mint", payload,
//	    webhook.WithSignature(secret),
//	    webhook.WithFixedRetry(3, time.Second),
//	)
//
// Send retries network errors, 5xx responses and 408/425/429. Other 4xx
// responses are permanent and wrapped in ErrPermanentFailure. Exhausted
// retries return ErrDeliveryFailed.
//
// # Signatures
//
// A signed delivery carries X-Reviewkit-Signature, X-Reviewkit-Timestamp and
// X-Reviewkit-Delivery. The signature is hex(HMAC-SHA256(secret, "<ts>.<body>")).
// Receivers call ParseSignature on the request headers and Verify on the raw
// body, passing a maximum age to reject replays.
//
// # Identifier registry
//
// IdentifierClient implements moderation.IdentifierRequester. It is wired into
// moderation.NewPublishedHandler so that every published reviewable gets an
// identifier minting request once its transition has committed.
package webhook
