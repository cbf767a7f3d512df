package integration

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryRule is the backoff budget for one error kind
type RetryRule struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// InitialInterval is the first wait
	InitialInterval time.Duration
	// MaxInterval caps the exponential wait
	MaxInterval time.Duration
	// Multiplier grows the wait between attempts
	Multiplier float64
	// RandomizationFactor is the jitter applied to every wait
	RandomizationFactor float64
	// MaxRetryAfter caps a platform-supplied retry hint, zero means uncapped
	MaxRetryAfter time.Duration
}

func (r RetryRule) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.InitialInterval
	b.MaxInterval = r.MaxInterval
	if r.Multiplier > 0 {
		b.Multiplier = r.Multiplier
	}
	b.RandomizationFactor = r.RandomizationFactor
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(max(r.MaxRetries, 0)))
}

// RetryPolicy decides per error kind whether and how long to wait before
// repeating a platform call. Kinds without a rule are never retried.
type RetryPolicy struct {
	// Rules maps retryable kinds to their budgets
	Rules map[integration.ErrorKind]RetryRule
	// CallTimeout bounds every single attempt, zero means no per-call deadline
	CallTimeout time.Duration
}

// DefaultRetryPolicy retries network failures and throttling with jittered
// exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return NewRetryPolicy(5, 500*time.Millisecond, 30*time.Second, 30*time.Second)
}

// NewRetryPolicy builds the standard policy from the sync configuration
func NewRetryPolicy(maxRetries int, initial, maxInterval, callTimeout time.Duration) RetryPolicy {
	base := RetryRule{
		MaxRetries:          maxRetries,
		InitialInterval:     initial,
		MaxInterval:         maxInterval,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}
	throttle := base
	throttle.MaxRetryAfter = 2 * time.Minute
	return RetryPolicy{
		Rules: map[integration.ErrorKind]RetryRule{
			integration.KindTransientNetwork: base,
			integration.KindRateLimited:      throttle,
		},
		CallTimeout: callTimeout,
	}
}

// Do runs an idempotent call, retrying retryable failures
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return p.run(ctx, op, true, fn)
}

// DoOnce runs a call that must not be applied twice. It is only repeated when
// the failure proves the platform never accepted the request: a throttle
// response or a failed dial.
func (p RetryPolicy) DoOnce(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return p.run(ctx, op, false, fn)
}

func (p RetryPolicy) run(ctx context.Context, op string, idempotent bool, fn func(ctx context.Context) error) error {
	kb := &kindBackOff{rules: p.Rules}
	attempt := func() error {
		callCtx := ctx
		if p.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
			defer cancel()
		}
		err := fn(callCtx)
		if err == nil {
			return nil
		}
		kind := integration.KindOf(err)
		if _, ok := p.Rules[kind]; !ok || !kind.Retryable() {
			return backoff.Permanent(err)
		}
		if !idempotent && kind != integration.KindRateLimited && !isDialError(err) {
			return backoff.Permanent(err)
		}
		kb.observe(kind, integration.RetryAfterOf(err))
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.L(ctx).Warn("retrying platform call",
			zap.String("op", op),
			zap.String("kind", string(integration.KindOf(err))),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotify(attempt, backoff.WithContext(kb, ctx), notify)
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// kindBackOff keeps one exponential schedule per error kind so a throttle
// does not consume the network-failure budget and vice versa.
type kindBackOff struct {
	rules map[integration.ErrorKind]RetryRule
	per   map[integration.ErrorKind]backoff.BackOff
	last  integration.ErrorKind
	hint  time.Duration
}

func (k *kindBackOff) observe(kind integration.ErrorKind, retryAfter time.Duration) {
	k.last = kind
	k.hint = retryAfter
}

// NextBackOff implements backoff.BackOff
func (k *kindBackOff) NextBackOff() time.Duration {
	rule, ok := k.rules[k.last]
	if !ok {
		return backoff.Stop
	}
	if k.per == nil {
		k.per = make(map[integration.ErrorKind]backoff.BackOff)
	}
	b, ok := k.per[k.last]
	if !ok {
		b = rule.newBackOff()
		k.per[k.last] = b
	}
	next := b.NextBackOff()
	if next == backoff.Stop {
		return backoff.Stop
	}
	hint := k.hint
	if rule.MaxRetryAfter > 0 && hint > rule.MaxRetryAfter {
		hint = rule.MaxRetryAfter
	}
	k.hint = 0
	if hint > next {
		return hint
	}
	return next
}

// Reset implements backoff.BackOff
func (k *kindBackOff) Reset() {
	k.per = nil
	k.last = ""
	k.hint = 0
}
