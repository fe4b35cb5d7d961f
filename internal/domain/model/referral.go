package model

import "time"

// ReferralRecord links one referral code to its owner and every identity that redeemed it.
// Referred is append-only and may contain duplicates.
type ReferralRecord struct {
	Code       string
	ReferrerID int64
	Referred   []int64
	CreatedAt  time.Time
}

func (r *ReferralRecord) ReferredCount() int {
	if r == nil {
		return 0
	}
	return len(r.Referred)
}
