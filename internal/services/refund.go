package services

import "time"

// Refund tiers for cancelling a confirmed booking, by time remaining
// before departure:
//
//	>= 24h  full refund minus a 10% cancellation fee
//	12-24h  50% refund
//	< 12h   no refund
const (
	fullRefundWindow = 24 * time.Hour
	halfRefundWindow = 12 * time.Hour

	cancellationFeePercent = 10
)

// RefundAmount returns the minor-unit refund owed when a confirmed booking
// for the given total is cancelled at cancelAt, departing at departureAt.
func RefundAmount(total int64, departureAt, cancelAt time.Time) int64 {
	remaining := departureAt.Sub(cancelAt)
	switch {
	case remaining >= fullRefundWindow:
		return total - total*cancellationFeePercent/100
	case remaining >= halfRefundWindow:
		return total / 2
	default:
		return 0
	}
}
