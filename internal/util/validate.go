package util

import (
	"fmt"
	"net"
	"regexp"
)

// validNameChars matches only alphanumeric characters, hyphens, and periods.
var validNameChars = regexp.MustCompile(`^[a-zA-Z0-9.\-]+$`)

// ValidateHostname checks that a hostname conforms to RFC 1123 rules:
//   - At least 2 characters
//   - Only alphanumeric characters (a-z, A-Z, 0-9), hyphens (-), and periods (.)
//   - First character must be alphanumeric
//   - Last character must not be a hyphen or period
func ValidateHostname(name string) error {
	if len(name) < 2 {
		return fmt.Errorf("hostname must be at least 2 characters, got %d", len(name))
	}

	if !validNameChars.MatchString(name) {
		return fmt.Errorf("hostname %q contains invalid characters (only a-z, A-Z, 0-9, hyphens, and periods are allowed)", name)
	}

	first := name[0]
	if !isAlphanumeric(first) {
		return fmt.Errorf("hostname must start with an alphanumeric character, got %q", string(first))
	}

	last := name[len(name)-1]
	if last == '-' || last == '.' {
		return fmt.Errorf("hostname must not end with a hyphen or period, got %q", string(last))
	}

	return nil
}

// ValidateIPAddress checks that addr parses as an IPv4 or IPv6 address.
func ValidateIPAddress(addr string) error {
	if net.ParseIP(addr) == nil {
		return fmt.Errorf("%q is not a valid IP address", addr)
	}
	return nil
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
