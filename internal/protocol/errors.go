package protocol

import "errors"

var (
	// ErrInvalidSignature indicates a signature did not verify under the expected key.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUntrustedCertificate indicates a certificate was not issued by the trusted broker.
	ErrUntrustedCertificate = errors.New("untrusted certificate")

	// ErrExpired indicates a certificate is past its expiry.
	ErrExpired = errors.New("certificate expired")

	// ErrBrokenChain indicates a revealed payword does not hash back to the
	// expected chain element. It is always treated as fraud.
	ErrBrokenChain = errors.New("broken chain")

	// ErrAlreadyRedeemed indicates the chain root was settled before. It is an
	// expected outcome of a retried or duplicated redeem.
	ErrAlreadyRedeemed = errors.New("already redeemed")

	// ErrUnknownIdentity indicates the identity is not registered with the broker.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrMalformedMessage indicates a framing or length mismatch in a payload.
	ErrMalformedMessage = errors.New("malformed message")

	ErrUntrustedCommitment = errors.New("untrusted commitment")
	ErrUnknownDenomination = errors.New("unknown denomination")
	ErrNoCommitment        = errors.New("no accepted commitment")
	ErrWrongVendor         = errors.New("commitment addressed to another vendor")
	ErrChainExhausted      = errors.New("hash chain exhausted")
	ErrInsufficientCredit  = errors.New("insufficient credit")
	ErrSessionTerminated   = errors.New("session terminated")
	ErrUnknownSession      = errors.New("unknown session token")
)

// Reason codes carried on the wire. They are stable across releases.
const (
	ReasonInvalidSignature     = "invalid_signature"
	ReasonUntrustedCertificate = "untrusted_certificate"
	ReasonExpired              = "expired"
	ReasonBrokenChain          = "broken_chain"
	ReasonAlreadyRedeemed      = "already_redeemed"
	ReasonUnknownIdentity      = "unknown_identity"
	ReasonMalformedMessage     = "malformed_message"
	ReasonUntrustedCommitment  = "untrusted_commitment"
	ReasonUnknownDenomination  = "unknown_denomination"
	ReasonNoCommitment         = "no_commitment"
	ReasonWrongVendor          = "wrong_vendor"
	ReasonChainExhausted       = "chain_exhausted"
	ReasonInsufficientCredit   = "insufficient_credit"
	ReasonSessionTerminated    = "session_terminated"
	ReasonUnknownSession       = "unknown_session"
	ReasonInternal             = "internal"
)

// Ordered so that the most specific class wins when an error wraps several.
var reasons = []struct {
	err    error
	reason string
}{
	{ErrAlreadyRedeemed, ReasonAlreadyRedeemed},
	{ErrBrokenChain, ReasonBrokenChain},
	{ErrUntrustedCommitment, ReasonUntrustedCommitment},
	{ErrExpired, ReasonExpired},
	{ErrUntrustedCertificate, ReasonUntrustedCertificate},
	{ErrInvalidSignature, ReasonInvalidSignature},
	{ErrUnknownIdentity, ReasonUnknownIdentity},
	{ErrUnknownDenomination, ReasonUnknownDenomination},
	{ErrMalformedMessage, ReasonMalformedMessage},
	{ErrNoCommitment, ReasonNoCommitment},
	{ErrWrongVendor, ReasonWrongVendor},
	{ErrChainExhausted, ReasonChainExhausted},
	{ErrInsufficientCredit, ReasonInsufficientCredit},
	{ErrSessionTerminated, ReasonSessionTerminated},
	{ErrUnknownSession, ReasonUnknownSession},
}

// Reason maps err to its wire reason code.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonInternal
}

// ErrorForReason maps a wire reason code back to its sentinel error. Unknown
// codes map to a generic error carrying the code.
func ErrorForReason(reason string) error {
	for _, r := range reasons {
		if r.reason == reason {
			return r.err
		}
	}
	return errors.New(reason)
}

// IsFraud reports whether err marks a protocol violation that must terminate
// the peer's session rather than be retried.
func IsFraud(err error) bool {
	return errors.Is(err, ErrBrokenChain) || errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrSessionTerminated)
}
