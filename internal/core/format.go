package core

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var usPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders d as US dollars with grouping, e.g. "$1,234.56"
// and "-$5.00".
func FormatCurrency(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	f := d.Abs().Round(2).InexactFloat64()
	return sign + "$" + usPrinter.Sprintf("%.2f", f)
}

// FormatDate renders a timestamp in the viewer's local zone, e.g.
// "Mar 5, 3:04 PM".
func FormatDate(t time.Time) string {
	return t.Local().Format("Jan 2, 3:04 PM")
}

// FormatMonthName renders a month key as "March 2025".
func FormatMonthName(k MonthKey) string {
	return k.Name()
}
