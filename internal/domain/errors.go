package domain

import "errors"

var (
	// ErrCapacityExceeded rejects an admission when the table or the global
	// connection cap is reached. No partial state is created.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrAuthenticationFailed rejects a handshake whose token did not verify.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrDecompression marks an inbound frame that claimed to be compressed
	// but could not be inflated. The frame is dropped; the connection stays
	// open.
	ErrDecompression = errors.New("decompression failed")

	// ErrSendFailure marks a single undelivered message. It degrades the
	// connection's health but never aborts a multi-recipient broadcast.
	ErrSendFailure = errors.New("send failed")

	// ErrUnauthorizedSubscription denies a subscribe request for a table or
	// identity the client does not own.
	ErrUnauthorizedSubscription = errors.New("unauthorized subscription")

	// ErrPoolClosed rejects operations after shutdown has begun.
	ErrPoolClosed = errors.New("pool closed")
)
