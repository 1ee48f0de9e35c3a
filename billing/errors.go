package billing

import "errors"

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrMalformedEvent   = errors.New("webhook event payload is malformed")

	ErrMissingSecretKey     = errors.New("billing provider secret key is required")
	ErrMissingWebhookSecret = errors.New("billing provider webhook secret is required")
)
