package service

import "errors"

var (
	// ErrDuplicateTransaction: the notification was already recorded. The
	// gateway is still acknowledged with success.
	ErrDuplicateTransaction = errors.New("transaction already recorded")

	// ErrUnmatchedPayment: classified, recorded, but no shop or sale could
	// be identified. The transaction stays visible for manual review.
	ErrUnmatchedPayment = errors.New("payment could not be matched")

	// ErrInvalidSignature: a signature header was present and did not
	// verify. The notification is rejected before the ledger.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMalformedNotification: required fields missing or unparseable.
	// Rejected before the ledger.
	ErrMalformedNotification = errors.New("malformed payment notification")

	// ErrAlreadyProcessed: the transaction was consumed by a concurrent
	// path before this one could claim it.
	ErrAlreadyProcessed = errors.New("transaction already processed")

	ErrShopNotFound = errors.New("shop not found")
	ErrSaleNotFound = errors.New("sale not found")

	// ErrNotConfigured: no license collection number has been set up.
	ErrNotConfigured = errors.New("license payment not configured")

	// ErrSessionInvalid: a desktop call carried a session token that does
	// not match the one issued at authentication.
	ErrSessionInvalid = errors.New("invalid session token")
)
