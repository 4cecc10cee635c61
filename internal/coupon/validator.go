package coupon

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/obs"
)

// UsageCounter reports how many times a user already redeemed a coupon.
type UsageCounter interface {
	CountUsage(ctx context.Context, code, userID string) (int, error)
}

// Validator runs the ordered coupon rule chain, stopping at the first failure.
type Validator struct {
	Usage  UsageCounter
	Now    func() time.Time
	Logger zerolog.Logger
}

// Validate evaluates every applicable rule for s in order.
func (v *Validator) Validate(ctx context.Context, s Subject) Result {
	if v == nil {
		v = &Validator{}
	}
	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	for _, r := range chain(s) {
		if err := r.check(ctx, v, s, now); err != nil {
			v.Logger.Warn().
				Str("coupon", s.Coupon.Code).
				Str("rule", r.name).
				Err(err).
				Msg("coupon_rejected")
			record("rejected", r.name)
			return Result{Rule: r.name, Message: err.Error(), Err: err}
		}
	}
	record("passed", "")
	return Result{Passed: true}
}

func record(result, rule string) {
	if obs.CouponValidationsTotal != nil {
		obs.CouponValidationsTotal.WithLabelValues(result, rule).Inc()
	}
}
