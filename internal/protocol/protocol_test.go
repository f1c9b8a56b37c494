package protocol

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasonRoundTrip(t *testing.T) {
	for _, r := range reasons {
		wrapped := fmt.Errorf("context: %w", r.err)
		assert.Equal(t, r.reason, Reason(wrapped))
		assert.ErrorIs(t, ErrorForReason(r.reason), r.err)
	}
	assert.Equal(t, ReasonInternal, Reason(errors.New("disk full")))
	assert.Equal(t, "", Reason(nil))
}

func TestReasonPrefersSpecificClass(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrUntrustedCommitment, ErrInvalidSignature)
	assert.Equal(t, ReasonUntrustedCommitment, Reason(err))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusOK, StatusFor(nil))
	assert.Equal(t, StatusFraud, StatusFor(fmt.Errorf("link 3: %w", ErrBrokenChain)))
	assert.Equal(t, StatusFraud, StatusFor(ErrInvalidSignature))
	assert.Equal(t, StatusRejected, StatusFor(ErrAlreadyRedeemed))
	assert.Equal(t, StatusRejected, StatusFor(ErrExpired))

	assert.Equal(t, StatusRejected, Rejected(ErrBrokenChain).Status)
	assert.Equal(t, ReasonBrokenChain, Rejected(ErrBrokenChain).Reason)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrMalformedMessage))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrUnknownIdentity))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrAlreadyRedeemed))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ErrBrokenChain))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ErrUnknownSession))
	assert.False(t, IsFraud(ErrUnknownSession))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(ErrExpired))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestIdentity(t *testing.T) {
	id, err := NewIdentity("vendor-1", 16)
	require.NoError(t, err)
	assert.Len(t, id, 16)
	assert.Equal(t, "vendor-1", id.String())

	parsed, err := ParseIdentityHex(id.Hex())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(id))

	_, err = NewIdentity("this name is far too long", 8)
	assert.Error(t, err)
}

func TestDenomination(t *testing.T) {
	for i, d := range Denominations {
		slot, err := d.Slot()
		require.NoError(t, err)
		assert.Equal(t, i, slot)
	}
	_, err := ParseDenomination(2)
	assert.ErrorIs(t, err, ErrUnknownDenomination)
}

func TestResponseErr(t *testing.T) {
	ok := ResponseFor(nil)
	assert.NoError(t, ok.Err())

	resp := ResponseFor(fmt.Errorf("%w: %w", ErrUntrustedCommitment, ErrExpired))
	err := resp.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUntrustedCommitment)
	assert.Equal(t, resp.Message, err.Error())

	fraud := ResponseFor(ErrBrokenChain)
	err = fraud.Err()
	assert.True(t, IsFraud(err))
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, StatusFraud, remote.Status)

	internal := Response{Status: StatusRejected, Reason: ReasonInternal}
	assert.Equal(t, ReasonInternal, Reason(internal.Err()))

	var empty Response
	assert.ErrorIs(t, empty.Err(), ErrMalformedMessage)
}
