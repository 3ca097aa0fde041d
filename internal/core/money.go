// Package core provides money parsing and formatting utilities.
//
// Amounts travel as float64 rupees because that is what the invoice API
// speaks; formatting rounds to paise once, at the edge.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseOptionalDecimal parses a user-entered number.
//
// Blank input yields nil (the field is unset). A leading rupee sign,
// surrounding spaces and en-IN grouping commas are accepted:
//
//	ParseOptionalDecimal("")            -> nil, nil
//	ParseOptionalDecimal("1,23,456.5")  -> 123456.5, nil
//	ParseOptionalDecimal("₹ 12")        -> 12, nil
//	ParseOptionalDecimal("12a")         -> nil, ErrInvalidAmount
func ParseOptionalDecimal(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, ErrInvalidAmount
	}
	return &f, nil
}

// FormatRupees formats an optional amount the en-IN way: "₹1,23,456.70".
// A nil amount renders as "₹0.00".
func FormatRupees(amount *float64) string {
	return FormatRupeesValue(Value(amount))
}

// FormatRupeesValue is FormatRupees for a plain value.
func FormatRupeesValue(amount float64) string {
	neg := amount < 0
	paise := int64(math.Round(math.Abs(amount) * 100))
	rupees := paise / 100
	rem := paise % 100

	s := groupIndian(strconv.FormatInt(rupees, 10)) + "." + twoDigits(rem)
	if neg && paise != 0 {
		return "-₹" + s
	}
	return "₹" + s
}

// FormatNumber renders an optional plain number without trailing zeros,
// "-" when unset. Used for quantities and percentages.
func FormatNumber(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// groupIndian inserts separators after the last three digits and then
// every two digits: 1234567 -> 12,34,567.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]

	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(groups, ",") + "," + tail
}

func twoDigits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
