package tabular

// convert.go turns cell text into the pgtype values stored in the warehouse.
//
// Humanitarian resources are produced by many tools, so the same column can
// hold "2024-01-31", "2024-01-31T00:00:00" or "31/01/2024", and numbers
// may carry thousands separators. Every function returns Valid=false for
// empty or unparseable input so NULLs reach the database.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
var TwoDigitYearPivot = 20

var (
	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"02/01/2006", "2/1/2006", "02-01-2006", "02.01.2006",
		"Jan 2, 2006", "2 Jan 2006", "2 January 2006", "January 2006", "Jan 2006",
		"20060102",
	}
	twoDigitYearLayouts = []string{
		"02/01/06", "2/1/06", "02.01.06",
	}
)

// Text converts s to pgtype.Text, invalid when blank.
func Text(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ParseTime parses the date and timestamp layouts seen in resources.
// The bool is false when s is blank or matches no layout.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if len(s) == 4 {
		if year, err := strconv.Atoi(s); err == nil {
			return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// Timestamp converts s to pgtype.Timestamp. With endOfDay set, a value
// that carries no time of day is moved to 23:59:59 of the same day.
func Timestamp(s string, endOfDay bool) pgtype.Timestamp {
	t, ok := ParseTime(s)
	if !ok {
		return pgtype.Timestamp{}
	}
	if endOfDay {
		t = EndOfDay(t)
	}
	return pgtype.Timestamp{Time: t, Valid: true}
}

// EndOfDay returns 23:59:59 of t's day when t is exactly midnight.
func EndOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
	}
	return t
}

// TimestampOf wraps a time as a valid pgtype.Timestamp.
func TimestampOf(t time.Time) pgtype.Timestamp {
	return pgtype.Timestamp{Time: t, Valid: true}
}

func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, " ", "")
	if negative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return ""
	}
	return s
}

// Numeric converts s to pgtype.Numeric.
func Numeric(s string) pgtype.Numeric {
	s = cleanNumber(s)
	if s == "" {
		return pgtype.Numeric{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// Decimal returns s as a decimal, for arithmetic on money values.
func Decimal(s string) (decimal.Decimal, bool) {
	s = cleanNumber(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Float returns s as a float64.
func Float(s string) (float64, bool) {
	s = cleanNumber(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Float8 converts s to pgtype.Float8.
func Float8(s string) pgtype.Float8 {
	f, ok := Float(s)
	if !ok {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

// Int returns s as an int64. Values such as "12.0" are accepted when they
// hold no fraction.
func Int(s string) (int64, bool) {
	s = cleanNumber(s)
	if s == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Int4 converts s to pgtype.Int4.
func Int4(s string) pgtype.Int4 {
	i, ok := Int(s)
	if !ok || i > math.MaxInt32 || i < math.MinInt32 {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

// Int8 converts s to pgtype.Int8.
func Int8(s string) pgtype.Int8 {
	i, ok := Int(s)
	if !ok {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: i, Valid: true}
}

// Bool converts s to pgtype.Bool. Accepts true/false, yes/no, t/f, y/n, 1/0.
func Bool(s string) pgtype.Bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{}
	}
}
