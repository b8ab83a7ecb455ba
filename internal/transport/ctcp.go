package transport

import (
	"strings"

	"github.com/keepmind9/hashbang/pkg/constants"
)

// IsCTCP reports whether text is wrapped in the CTCP delimiter
func IsCTCP(text string) bool {
	return strings.HasPrefix(text, constants.CTCPDelimiter)
}

// StripCTCP removes the CTCP delimiters from both ends of text
func StripCTCP(text string) string {
	return strings.Trim(text, constants.CTCPDelimiter)
}

// FrameCTCP wraps payload in the CTCP delimiter
func FrameCTCP(payload string) string {
	return constants.CTCPDelimiter + payload + constants.CTCPDelimiter
}

// truncate shortens message to max bytes keeping the head, the way IRC
// servers would cut it anyway, but without splitting a UTF-8 sequence.
func truncate(message string, max int) string {
	if len(message) <= max {
		return message
	}
	cut := max
	for cut > 0 && (message[cut]&0xC0) == 0x80 {
		cut--
	}
	return message[:cut]
}
