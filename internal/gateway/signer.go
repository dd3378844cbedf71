package gateway

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/stallwise/stallwise-orders-service/internal/apperrors"
)

// checkMacField is the field carrying the checksum itself; it is excluded
// from the canonical string it signs.
const checkMacField = "CheckMacValue"

// gatewayEscaper re-applies the gateway's non-standard escaping on top of
// standard percent-encoding. The gateway computes its reference checksum
// with these characters unescaped, so omitting any of them produces a
// value the gateway rejects.
var gatewayEscaper = strings.NewReplacer(
	"%21", "!",
	"%28", "(",
	"%29", ")",
	"%2a", "*",
	"%2d", "-",
	"%2e", ".",
	"%5f", "_",
)

// Signer computes and verifies the CheckMacValue that authenticates both
// outbound requests to and inbound notifications from the payment gateway.
type Signer struct {
	hashKey string
	hashIV  string
}

func NewSigner(hashKey, hashIV string) *Signer {
	return &Signer{hashKey: hashKey, hashIV: hashIV}
}

// CheckMacValue signs the given fields. Canonical form: fields sorted by
// key in ASCII order, joined as key=value pairs with &, prefixed with
// HashKey and suffixed with HashIV, percent-encoded as a whole,
// lower-cased, gateway-escaped, then MD5-hashed and upper-hex encoded.
func (s *Signer) CheckMacValue(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == checkMacField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("HashKey=")
	sb.WriteString(s.hashKey)
	for _, k := range keys {
		sb.WriteByte('&')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(fields[k])
	}
	sb.WriteString("&HashIV=")
	sb.WriteString(s.hashIV)

	canonical := strings.ToLower(url.QueryEscape(sb.String()))
	canonical = gatewayEscaper.Replace(canonical)

	sum := md5.Sum([]byte(canonical))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Verify checks the CheckMacValue carried in an inbound payload against a
// recomputation over the remaining fields. A missing checksum, a missing
// trade number, or any mismatch fails closed with ErrChecksumMismatch;
// the payload is never partially trusted.
func (s *Signer) Verify(fields map[string]string) error {
	provided, ok := fields[checkMacField]
	if !ok || provided == "" {
		return apperrors.ErrChecksumMismatch
	}
	if fields["MerchantTradeNo"] == "" {
		return apperrors.ErrChecksumMismatch
	}

	expected := s.CheckMacValue(fields)
	if !strings.EqualFold(provided, expected) {
		return apperrors.ErrChecksumMismatch
	}
	return nil
}
