package utils

import (
	"fmt"
	"strings"
)

// GenerateTrackingCode returns GCX-<year>-<6 random digits>.
func GenerateTrackingCode(year int) (string, error) {
	n, err := randomInt(900000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("GCX-%d-%06d", year, 100000+n), nil
}

// FallbackTrackingCode is used once six digits keep colliding. The longer
// suffix cannot clash with a primary code.
func FallbackTrackingCode(year int) (string, error) {
	n, err := randomInt(90000000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("GCX-%d-%08d", year, 10000000+n), nil
}

// FormatSMSPhone normalises a Ghana number to the 10 digit local form
// SMS gateways expect. Numbers it cannot place are returned unchanged.
func FormatSMSPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "233"):
		return "0" + digits[3:]
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		return digits
	case len(digits) == 9:
		return "0" + digits
	}
	return phone
}
