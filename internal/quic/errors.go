package quic

import "fmt"

// ProtocolViolationError is returned when a peer's ACK frame or other input
// violates a protocol invariant the controller must enforce itself (RFC 9000
// §13.2.3: an endpoint MUST NOT acknowledge a packet it did not send).
type ProtocolViolationError struct {
	Reason string
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("protocol violation: %s", e.Reason)
}

// RetryLimitExceededError is returned when a connection has received more
// Retry packets than retriesAllowed permits (§4.10, "Fail after 3 retries").
type RetryLimitExceededError struct {
	Limit int
}

func (e *RetryLimitExceededError) Error() string {
	return fmt.Sprintf("retry limit exceeded: more than %d retries", e.Limit)
}

// TokenTooLongError is returned by Retry/SetToken when the supplied token
// would not fit the wire encoding budget.
type TokenTooLongError struct {
	Len, Max int
}

func (e *TokenTooLongError) Error() string {
	return fmt.Sprintf("token too long: %d bytes, max %d", e.Len, e.Max)
}

// PacketTooSmallError is a fatal, misconfigured-MTU condition (§7): a packet
// could not be built large enough to carry its required payload.
type PacketTooSmallError struct {
	Need, Have int
}

func (e *PacketTooSmallError) Error() string {
	return fmt.Sprintf("packet too small: need %d bytes, have %d", e.Need, e.Have)
}
