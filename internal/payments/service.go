package payments

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/payword/internal/certificate"
	"github.com/congo-pay/payword/internal/commitment"
	"github.com/congo-pay/payword/internal/hashchain"
	"github.com/congo-pay/payword/internal/metrics"
	"github.com/congo-pay/payword/internal/notification"
	"github.com/congo-pay/payword/internal/protocol"
)

type chainState struct {
	last     Link
	accepted bool
}

// Session is the vendor's view of one user's current episode.
type Session struct {
	mu         sync.Mutex
	token      string
	commitment commitment.Commitment
	holder     certificate.UserInfo
	chains     [len(protocol.Denominations)]chainState
	lastSeen   time.Time
	terminated bool
	closed     bool
}

// drain marks the session closed and returns one redeem request per chain
// that has an accepted link. Callers hold s.mu.
func (s *Session) drain() []RedeemRequest {
	if s.closed {
		return nil
	}
	s.closed = true
	var out []RedeemRequest
	for _, st := range s.chains {
		if st.accepted {
			out = append(out, RedeemRequest{Commitment: s.commitment, Link: st.last})
		}
	}
	return out
}

// Receipt reports the state of a chain after an accepted link.
type Receipt struct {
	Index        int32
	Denomination protocol.Denomination
	Value        int64
}

// Tracker keeps per-user sessions keyed by identity, so a user reconnecting
// mid-episode continues where the previous connection stopped.
type Tracker struct {
	vendor   protocol.Identity
	verifier *commitment.Verifier
	hasher   hashchain.Hasher
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
	maxChain int

	mu       sync.Mutex
	sessions map[string]*Session
	// committed roots mapped to the expiry of the certificate they came with
	roots   map[hashchain.Payword]time.Time
	pending []RedeemRequest
}

// NewTracker constructs a tracker for the vendor identified by vendor.
func NewTracker(vendor protocol.Identity, verifier *commitment.Verifier, hasher hashchain.Hasher, notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Tracker {
	return &Tracker{
		vendor:   vendor,
		verifier: verifier,
		hasher:   hasher,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		maxChain: commitment.DefaultMaxChainLength,
		sessions: make(map[string]*Session),
		roots:    make(map[hashchain.Payword]time.Time),
	}
}

// SetMaxChainLength bounds the chain length of accepted commitments, and with
// it the hashing a single payment can cost. n <= 0 keeps the default.
func (t *Tracker) SetMaxChainLength(n int) {
	if n > 0 {
		t.maxChain = n
	}
}

// Grant is an accepted commitment. The user presents Token with every later
// payment and with END.
type Grant struct {
	Holder certificate.UserInfo
	Token  string
}

// ErrReplayedCommitment indicates a commitment reuses a chain root the vendor already accepted.
var ErrReplayedCommitment = fmt.Errorf("%w: chain root already committed", protocol.ErrUntrustedCommitment)

// Commit verifies c and opens a fresh session for its holder. An existing
// session for the same user is retired into the redemption queue.
func (t *Tracker) Commit(ctx context.Context, c commitment.Commitment) (Grant, error) {
	g, err := t.commit(c)
	t.metrics.Commitment(protocol.Reason(err))
	if err != nil {
		t.logger.WarnContext(ctx, "commitment rejected", "identity", c.User().String(), "reason", protocol.Reason(err), "error", err)
		return Grant{}, err
	}
	t.logger.InfoContext(ctx, "commitment accepted",
		"identity", g.Holder.Identity.String(), "account", g.Holder.AccountNumber, "chain_length", c.ChainLength)
	return g, nil
}

func (t *Tracker) commit(c commitment.Commitment) (Grant, error) {
	if !c.VendorIdentity.Equal(t.vendor) {
		return Grant{}, fmt.Errorf("%w: addressed to %s", protocol.ErrWrongVendor, c.VendorIdentity)
	}
	if err := c.CheckChainLength(t.maxChain); err != nil {
		return Grant{}, err
	}
	holder, err := t.verifier.Verify(c)
	if err != nil {
		return Grant{}, err
	}

	s := &Session{token: uuid.NewString(), commitment: c, holder: holder, lastSeen: t.now()}
	t.mu.Lock()
	for _, r := range c.Roots {
		if _, seen := t.roots[r]; seen {
			t.mu.Unlock()
			return Grant{}, ErrReplayedCommitment
		}
	}
	for _, r := range c.Roots {
		t.roots[r] = c.Certificate.Expiry
	}
	key := holder.Identity.Key()
	previous := t.sessions[key]
	t.sessions[key] = s
	t.metrics.SetOpenSessions(len(t.sessions))
	t.mu.Unlock()

	if previous != nil {
		t.retire(previous)
	}
	return Grant{Holder: holder, Token: s.token}, nil
}

// session returns the user's current session if token names it.
func (t *Tracker) session(user protocol.Identity, token string) (*Session, error) {
	t.mu.Lock()
	s := t.sessions[user.Key()]
	t.mu.Unlock()
	if s == nil {
		return nil, protocol.ErrNoCommitment
	}
	if subtle.ConstantTimeCompare([]byte(s.token), []byte(token)) != 1 {
		return nil, protocol.ErrUnknownSession
	}
	return s, nil
}

// Accept verifies link against the user's session. A link that does not chain
// onto the previous one, or onto the committed root for the first reveal,
// terminates the session and returns an error wrapping ErrBrokenChain. The
// links accepted before that point stay queued for redemption. Resending the
// last accepted link is a no-op. Links presented without the session's token
// are refused and leave the session untouched.
func (t *Tracker) Accept(ctx context.Context, user protocol.Identity, token string, link Link) (Receipt, error) {
	receipt, err := t.accept(ctx, user, token, link)
	t.metrics.Payment(string(protocol.StatusFor(err)), strconv.Itoa(int(link.Denomination)))
	return receipt, err
}

func (t *Tracker) accept(ctx context.Context, user protocol.Identity, token string, link Link) (Receipt, error) {
	s, err := t.session(user, token)
	if err != nil {
		return Receipt{}, err
	}
	slot, err := link.Denomination.Slot()
	if err != nil {
		return Receipt{}, err
	}

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return Receipt{}, protocol.ErrSessionTerminated
	}
	if s.closed {
		s.mu.Unlock()
		return Receipt{}, protocol.ErrNoCommitment
	}
	if link.Index > s.commitment.ChainLength-2 {
		s.mu.Unlock()
		return Receipt{}, fmt.Errorf("%w: index %d beyond chain length %d", protocol.ErrChainExhausted, link.Index, s.commitment.ChainLength)
	}

	st := &s.chains[slot]
	if st.accepted && link.Index == st.last.Index && link.Payword == st.last.Payword {
		s.mu.Unlock()
		return Receipt{Index: link.Index, Denomination: link.Denomination, Value: link.Value()}, nil
	}
	var ok bool
	if !st.accepted {
		ok = t.hasher.VerifyRedemption(s.commitment.Roots[slot], link.Payword, link.Steps())
	} else {
		ok = link.Index == st.last.Index+1 && t.hasher.VerifyLink(st.last.Payword, link.Payword)
	}
	if !ok {
		s.terminated = true
		requests := s.drain()
		s.mu.Unlock()
		t.Requeue(requests...)

		err := fmt.Errorf("%w: denomination %d index %d", protocol.ErrBrokenChain, link.Denomination, link.Index)
		t.logger.WarnContext(ctx, "payment fraud", "identity", user.String(), "denomination", int(link.Denomination), "index", link.Index, "queued", len(requests))
		if t.notifier != nil {
			_ = t.notifier.Send(ctx, notification.Message{
				Kind:        notification.KindFraudDetected,
				Destination: user.String(),
				Body:        err.Error(),
			})
		}
		return Receipt{}, err
	}

	st.last = link
	st.accepted = true
	s.lastSeen = t.now()
	s.mu.Unlock()

	t.logger.DebugContext(ctx, "payment accepted", "identity", user.String(), "denomination", int(link.Denomination), "index", link.Index)
	return Receipt{Index: link.Index, Denomination: link.Denomination, Value: link.Value()}, nil
}

// Close ends the user's episode and queues its redemption. It reports how many
// chains were queued.
func (t *Tracker) Close(user protocol.Identity, token string) (int, error) {
	s, err := t.session(user, token)
	if err != nil {
		return 0, err
	}
	return t.retire(s), nil
}

// CloseIdle retires sessions with no accepted link since before.
func (t *Tracker) CloseIdle(before time.Time) int {
	return t.closeWhere(func(s *Session) bool { return s.lastSeen.Before(before) })
}

// CloseAll retires every open session.
func (t *Tracker) CloseAll() int {
	return t.closeWhere(func(*Session) bool { return true })
}

func (t *Tracker) closeWhere(match func(*Session) bool) int {
	var candidates []*Session
	t.mu.Lock()
	for _, s := range t.sessions {
		candidates = append(candidates, s)
	}
	t.mu.Unlock()

	n := 0
	for _, s := range candidates {
		s.mu.Lock()
		ok := match(s)
		s.mu.Unlock()
		if ok {
			n += t.retire(s)
		}
	}
	return n
}

func (t *Tracker) retire(s *Session) int {
	s.mu.Lock()
	requests := s.drain()
	user := s.holder.Identity
	s.mu.Unlock()
	t.removeSession(user, s, requests)
	return len(requests)
}

// removeSession drops s from the index if it is still current and queues its
// redeem requests. It must not be called with s.mu held.
func (t *Tracker) removeSession(user protocol.Identity, s *Session, requests []RedeemRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.sessions[user.Key()]; ok && current == s {
		delete(t.sessions, user.Key())
		t.metrics.SetOpenSessions(len(t.sessions))
	}
	t.pending = append(t.pending, requests...)
}

// Pending removes and returns every queued redeem request.
func (t *Tracker) Pending() []RedeemRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.pending
	t.pending = nil
	return out
}

// Requeue puts back requests whose redemption failed for a retryable reason.
func (t *Tracker) Requeue(requests ...RedeemRequest) {
	if len(requests) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, requests...)
}

// ForgetExpired drops remembered chain roots whose certificate expired before
// now. Commitments carrying such a certificate no longer verify, so they
// cannot be replayed.
func (t *Tracker) ForgetExpired(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for r, expiry := range t.roots {
		if expiry.Before(now) {
			delete(t.roots, r)
			n++
		}
	}
	return n
}

// Roots reports how many committed chain roots are remembered for replay
// detection.
func (t *Tracker) Roots() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.roots)
}

// Open reports how many sessions accept payments.
func (t *Tracker) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Retryable reports whether a failed redemption is worth sending again.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return protocol.Reason(err) == protocol.ReasonInternal && !errors.Is(err, context.Canceled)
}
