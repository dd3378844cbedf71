package gateway

import "strconv"

// RtnCodeSuccess is the only result code the gateway sends for a
// successful trade; every other code is a failure.
const RtnCodeSuccess = 1

// Notification is a decoded gateway callback. Fields are read from the
// already-verified payload; decoding never precedes verification.
type Notification struct {
	MerchantTradeNo string
	TradeNo         string
	RtnCode         int
	RtnMsg          string
	TradeAmt        int64
	PaymentType     string
	PaymentDate     string
}

// Succeeded reports whether the notification announces a settled payment.
func (n *Notification) Succeeded() bool {
	return n.RtnCode == RtnCodeSuccess
}

// ParseNotification decodes the verified field map. Unparsable numeric
// fields decode to zero, which downstream guards treat as failure.
func ParseNotification(fields map[string]string) *Notification {
	rtnCode, _ := strconv.Atoi(fields["RtnCode"])
	tradeAmt, _ := strconv.ParseInt(fields["TradeAmt"], 10, 64)
	return &Notification{
		MerchantTradeNo: fields["MerchantTradeNo"],
		TradeNo:         fields["TradeNo"],
		RtnCode:         rtnCode,
		RtnMsg:          fields["RtnMsg"],
		TradeAmt:        tradeAmt,
		PaymentType:     fields["PaymentType"],
		PaymentDate:     fields["PaymentDate"],
	}
}
