package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	UnknownDate     = "unknown date"
	DefaultCurrency = "MAD"
)

// TimeAgo: <1m "just now", <1h минуты, <1d часы, <7d дни, дальше абсолютная дата.
func TimeAgo(now time.Time, past *time.Time) string {
	if past == nil || past.IsZero() {
		return UnknownDate
	}
	secs := int64(now.Sub(*past) / time.Second)
	switch {
	case secs < 60:
		return "just now"
	case secs < 3600:
		return plural(secs/60, "minute") + " ago"
	case secs < 86400:
		return plural(secs/3600, "hour") + " ago"
	case secs < 604800:
		return plural(secs/86400, "day") + " ago"
	default:
		return "on " + past.Format("02 Jan 2006")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatCurrency: "1 234.50 MAD".
func FormatCurrency(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	s := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if amount.IsNegative() && !amount.Round(2).IsZero() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	b.WriteByte(' ')
	b.WriteString(currency)
	return b.String()
}
