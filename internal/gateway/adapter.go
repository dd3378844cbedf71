package gateway

import (
	"html"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stallwise/stallwise-orders-service/internal/config"
	"github.com/stallwise/stallwise-orders-service/internal/logging"
	"github.com/stallwise/stallwise-orders-service/internal/models"
)

// The gateway expects trade dates in this exact layout.
const tradeDateLayout = "2006/01/02 15:04:05"

// Acknowledgements the gateway recognizes. Anything else is treated as a
// delivery failure and retried indefinitely.
const AckSuccess = "1|OK"

// AckError formats the gateway's rejection acknowledgement.
func AckError(reason string) string {
	return "0|Error:" + reason
}

// Adapter builds signed outbound checkout requests and verifies inbound
// notifications for one merchant account.
type Adapter struct {
	cfg    config.GatewayConfig
	signer *Signer
	logger *logging.Logger
}

func NewAdapter(cfg config.GatewayConfig) *Adapter {
	return &Adapter{
		cfg:    cfg,
		signer: NewSigner(cfg.HashKey, cfg.HashIV),
		logger: logging.New("gateway"),
	}
}

// Endpoint returns the gateway cashier URL the checkout form posts to.
func (a *Adapter) Endpoint() string {
	return a.cfg.Endpoint
}

// BuildSignedRequest assembles the outbound field set for an order's
// payment attempt and attaches the CheckMacValue. The amount is the
// order's discounted total as a whole-unit integer; item names are joined
// with '#' per the gateway's convention.
func (a *Adapter) BuildSignedRequest(order *models.Order, attemptAt time.Time) map[string]string {
	names := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		names = append(names, item.ProductName)
	}

	fields := map[string]string{
		"MerchantID":        a.cfg.MerchantID,
		"MerchantTradeNo":   FormatTradeNo(order.ID, attemptAt),
		"MerchantTradeDate": attemptAt.Format(tradeDateLayout),
		"PaymentType":       "aio",
		"TotalAmount":       strconv.FormatInt(order.TotalPrice, 10),
		"TradeDesc":         "stallwise order",
		"ItemName":          strings.Join(names, "#"),
		"ReturnURL":         a.cfg.NotifyURL,
		"ClientBackURL":     a.cfg.ReturnURL,
		"ChoosePayment":     "ALL",
	}
	fields[checkMacField] = a.signer.CheckMacValue(fields)

	a.logger.Debug("Built signed gateway request", logging.Fields{
		"order_id": order.ID,
		"trade_no": fields["MerchantTradeNo"],
		"amount":   fields["TotalAmount"],
	})

	return fields
}

// VerifyNotification flattens and authenticates an inbound form payload.
// It returns the verified field map, or ErrChecksumMismatch.
func (a *Adapter) VerifyNotification(values url.Values) (map[string]string, error) {
	fields := make(map[string]string, len(values))
	for k := range values {
		fields[k] = values.Get(k)
	}
	if err := a.signer.Verify(fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// AutoPostForm renders a self-submitting HTML form carrying the signed
// fields, for the browser handoff to the gateway cashier page.
func (a *Adapter) AutoPostForm(fields map[string]string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html><html><body>")
	sb.WriteString(`<form id="gateway" method="post" action="`)
	sb.WriteString(html.EscapeString(a.cfg.Endpoint))
	sb.WriteString(`">`)
	for k, v := range fields {
		sb.WriteString(`<input type="hidden" name="`)
		sb.WriteString(html.EscapeString(k))
		sb.WriteString(`" value="`)
		sb.WriteString(html.EscapeString(v))
		sb.WriteString(`">`)
	}
	sb.WriteString(`</form><script>document.getElementById("gateway").submit();</script>`)
	sb.WriteString("</body></html>")
	return sb.String()
}
