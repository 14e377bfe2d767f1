package enums

import "fmt"

// CookieSize identifies the size tier a flavor is sold in. Each tier carries
// its own stock counter on the flavor row.
type CookieSize string

const (
	CookieSizeMini   CookieSize = "mini"
	CookieSizeMedium CookieSize = "medium"
	CookieSizeLarge  CookieSize = "large"
)

var validCookieSizes = []CookieSize{
	CookieSizeMini,
	CookieSizeMedium,
	CookieSizeLarge,
}

// String implements fmt.Stringer.
func (c CookieSize) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CookieSize.
func (c CookieSize) IsValid() bool {
	for _, candidate := range validCookieSizes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCookieSize converts raw input into a CookieSize.
func ParseCookieSize(value string) (CookieSize, error) {
	for _, candidate := range validCookieSizes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cookie size %q", value)
}

// CookieSizes returns every known size tier in display order.
func CookieSizes() []CookieSize {
	return append([]CookieSize(nil), validCookieSizes...)
}
