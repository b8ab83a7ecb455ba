package transport

import "strings"

// IRC rfc1459 casemapping treats []\~ as the upper case forms of {}|^.
var (
	ircLower = strings.NewReplacer(
		"[", "{", "]", "}", "\\", "|", "~", "^",
	)
	ircUpper = strings.NewReplacer(
		"{", "[", "}", "]", "|", "\\", "^", "~",
	)
)

// ToIRCLower folds s with rfc1459 casemapping
func ToIRCLower(s string) string {
	return ircLower.Replace(asciiLower(s))
}

// ToIRCUpper is the inverse of ToIRCLower
func ToIRCUpper(s string) string {
	return ircUpper.Replace(asciiUpper(s))
}

// EqualFoldIRC compares a and b under rfc1459 casemapping
func EqualFoldIRC(a, b string) bool {
	return ToIRCLower(a) == ToIRCLower(b)
}

// asciiLower lowers A-Z only; non-ASCII runes are left alone as the
// protocol does not define their case.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func asciiUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
