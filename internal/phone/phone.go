// Package phone normalizes US phone numbers for storage and delivery.
package phone

import "strings"

// Digits strips every non-digit rune.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// national returns the ten-digit national number, dropping a leading US
// country code. ok is false for anything else.
func national(s string) (string, bool) {
	d := Digits(s)
	switch {
	case len(d) == 10:
		return d, true
	case len(d) == 11 && d[0] == '1':
		return d[1:], true
	}
	return "", false
}

// Display formats a ten- or eleven-digit US number as "(XXX) XXX-XXXX".
// Other inputs are returned trimmed and unchanged.
func Display(s string) string {
	n, ok := national(s)
	if !ok {
		return strings.TrimSpace(s)
	}
	return "(" + n[:3] + ") " + n[3:6] + "-" + n[6:]
}

// E164 formats a US number as "+1XXXXXXXXXX". Numbers that already carry a
// foreign "+" prefix keep their digits. Empty input yields "".
func E164(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if n, ok := national(s); ok {
		return "+1" + n
	}
	d := Digits(s)
	if d == "" {
		return ""
	}
	return "+" + d
}
