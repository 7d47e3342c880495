package ingestion

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TransformType names a value transform applied to a resolved field
type TransformType string

const (
	TransformPhoneNormalize TransformType = "phone_normalize"
	TransformUppercase      TransformType = "uppercase"
	TransformLowercase      TransformType = "lowercase"
	TransformTrim           TransformType = "trim"
	TransformDigitsOnly     TransformType = "digits_only"
)

// CountryPrefix is the domestic dialing prefix prepended to area-code phones
const CountryPrefix = "55"

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// IsKnown reports whether t is one of the supported transforms.
// Unknown and empty types fall back to trim.
func (t TransformType) IsKnown() bool {
	switch t {
	case TransformPhoneNormalize, TransformUppercase, TransformLowercase, TransformTrim, TransformDigitsOnly:
		return true
	default:
		return false
	}
}

// Transform renders v as text and applies kind to it.
// Null, blank and non-scalar input always yield "".
func Transform(v Value, kind TransformType) string {
	if !v.IsScalar() {
		return ""
	}
	return TransformString(v.Text(), kind)
}

// TransformString applies kind to a plain string
func TransformString(s string, kind TransformType) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	switch kind {
	case TransformPhoneNormalize:
		return NormalizePhone(s)
	case TransformUppercase:
		return upperCaser.String(s)
	case TransformLowercase:
		return lowerCaser.String(s)
	case TransformDigitsOnly:
		return digitsOnly(s)
	default:
		return s
	}
}

// NormalizePhone strips everything but digits and prepends CountryPrefix to
// 10 or 11 digit domestic numbers. Numbers already carrying the prefix with
// at least 12 digits are kept; anything else is returned as bare digits.
func NormalizePhone(s string) string {
	digits := digitsOnly(s)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, CountryPrefix) && len(digits) >= 12 {
		return digits
	}
	if len(digits) == 10 || len(digits) == 11 {
		return CountryPrefix + digits
	}
	return digits
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
