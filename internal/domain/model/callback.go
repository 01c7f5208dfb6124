package model

import "time"

// mpesaTimestampLayout is the gateway's YYYYMMDDHHMMSS wire format, used both
// for the push password timestamp and the callback TransactionDate.
const mpesaTimestampLayout = "20060102150405"

// Metadata keys this system consumes. Anything else in the callback item list
// is preserved verbatim but not interpreted.
const (
	MetadataKeyReceiptNumber   = "MpesaReceiptNumber"
	MetadataKeyTransactionDate = "TransactionDate"
)

// CallbackItem is one Name/Value pair from the callback metadata list.
type CallbackItem struct {
	Name  string
	Value any
}

// STKCallback is the stkCallback payload after the HTTP layer has stripped
// the Body envelope.
type STKCallback struct {
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Items             []CallbackItem
}

// FlattenMetadata collapses the item list into an open mapping. Duplicate
// names keep the last value; unknown names pass through untouched.
func (c *STKCallback) FlattenMetadata() map[string]any {
	meta := make(map[string]any, len(c.Items))
	for _, item := range c.Items {
		if item.Name == "" {
			continue
		}
		meta[item.Name] = item.Value
	}
	return meta
}

// FormatMpesaTimestamp renders t in the gateway's timestamp format.
func FormatMpesaTimestamp(t time.Time) string {
	return t.Format(mpesaTimestampLayout)
}

// ParseMpesaTimestamp parses a callback TransactionDate. The gateway delivers
// it as a JSON number, so numeric and string forms are both accepted.
func ParseMpesaTimestamp(v any) (time.Time, bool) {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case float64:
		// JSON numbers decode as float64; 20231001120000 fits in 52 bits.
		s = formatNumeric(int64(val))
	case int64:
		s = formatNumeric(val)
	default:
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(mpesaTimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatNumeric(n int64) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, 0, 14)
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	return string(buf)
}
