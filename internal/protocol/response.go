package protocol

import (
	"errors"
	"fmt"
	"net/http"
)

// SessionHeader carries the token a vendor hands out for an accepted
// commitment. Payments and END must present it.
const SessionHeader = "X-Payword-Session"

// Response is the JSON envelope returned for every opcode.
type Response struct {
	Status  Status `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// ResponseFor builds the envelope for an operation result.
func ResponseFor(err error) Response {
	if err == nil {
		return Response{Status: StatusOK}
	}
	return Response{Status: StatusFor(err), Reason: Reason(err), Message: err.Error()}
}

// Rejected builds a REJECTED envelope regardless of the error class.
func Rejected(err error) Response {
	r := ResponseFor(err)
	if r.Status == StatusFraud {
		r.Status = StatusRejected
	}
	return r
}

// Err rebuilds the error a non-OK envelope carries. The result matches the
// sentinel for its reason under errors.Is and prints the peer's message.
func (r *Response) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	if r.Status == "" {
		return fmt.Errorf("%w: response without status", ErrMalformedMessage)
	}
	return &RemoteError{Status: r.Status, Reason: r.Reason, Message: r.Message}
}

// RemoteError is a failure reported by a peer.
type RemoteError struct {
	Status  Status
	Reason  string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.Reason
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return ErrorForReason(e.Reason)
}

// HTTPStatus maps an operation error to a transport status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrUnknownDenomination):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownIdentity), errors.Is(err, ErrNoCommitment):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyRedeemed):
		return http.StatusConflict
	case IsFraud(err), errors.Is(err, ErrWrongVendor), errors.Is(err, ErrUnknownSession):
		return http.StatusForbidden
	case Reason(err) == ReasonInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}
