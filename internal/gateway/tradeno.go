package gateway

import (
	"fmt"
	"strconv"
	"time"
)

// The merchant trade number encodes the order id directly so the
// notification handler can recover it without a lookup: a 16-digit
// zero-padded order id followed by a 4-digit retry suffix. Retried payment
// attempts for the same order get distinct trade numbers, which the
// gateway requires.
const tradeNoOrderDigits = 16

// FormatTradeNo builds the merchant trade number for one payment attempt.
func FormatTradeNo(orderID int64, attemptAt time.Time) string {
	return fmt.Sprintf("%0*d%04d", tradeNoOrderDigits, orderID, attemptAt.Unix()%10000)
}

// ParseTradeNo recovers the order id from a merchant trade number. A
// malformed trade number returns an error so the caller can fall back to
// a secondary match instead of failing outright.
func ParseTradeNo(tradeNo string) (int64, error) {
	if len(tradeNo) < tradeNoOrderDigits {
		return 0, fmt.Errorf("trade number too short: %q", tradeNo)
	}
	id, err := strconv.ParseInt(tradeNo[:tradeNoOrderDigits], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("trade number not numeric: %q", tradeNo)
	}
	if id <= 0 {
		return 0, fmt.Errorf("trade number encodes no order id: %q", tradeNo)
	}
	return id, nil
}
