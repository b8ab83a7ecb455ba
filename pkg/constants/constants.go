package constants

import "time"

// Control-protocol framing
const (
	// CTCPDelimiter wraps out-of-band (CTCP) payloads on both ends
	CTCPDelimiter = "\x01"
	// ClientInfoToken is the reserved control token answered by the built-in responder
	ClientInfoToken = "clientinfo"
)

// Instance defaults
const (
	// DefaultCommandPrefix is used when an instance does not configure one
	DefaultCommandPrefix = "!"
	// DefaultProtocol is the transport used when an instance does not name one
	DefaultProtocol = "irc"
	// DefaultIRCPort is the plaintext IRC port
	DefaultIRCPort = 6667
	// DefaultIRCSSLPort is the TLS IRC port
	DefaultIRCSSLPort = 6697
	// DefaultChannelTypes is the CHANTYPES value assumed before the server advertises one
	DefaultChannelTypes = "#&"
)

// Message length limits for different platforms
const (
	// MaxIRCMessageLength keeps PRIVMSG/NOTICE payloads within a 512 byte line
	MaxIRCMessageLength = 400
	// MaxDiscordMessageLength is Discord's message character limit
	MaxDiscordMessageLength = 2000
	// MaxTelegramMessageLength is Telegram's message character limit
	MaxTelegramMessageLength = 4096
)

// Timeouts and delays
const (
	// DefaultConnectionTimeout is the timeout for establishing connections
	DefaultConnectionTimeout = 30 * time.Second
	// DefaultKeepAlive is the IRC ping interval
	DefaultKeepAlive = 4 * time.Minute
	// DefaultPollTimeout is the timeout for long polling operations
	DefaultPollTimeout = 60 * time.Second
	// DefaultStopTimeout bounds a stop-all or quit sequence
	DefaultStopTimeout = 10 * time.Second
	// StatusHTTPTimeout is the timeout for status CLI requests
	StatusHTTPTimeout = 5 * time.Second
	// ConfigReloadDebounce coalesces bursts of config file writes
	ConfigReloadDebounce = 500 * time.Millisecond
)

// Secret masking
const (
	// MinSecretLengthForMasking is the minimum secret length to keep a prefix and suffix
	MinSecretLengthForMasking = 10
	// SecretMaskPrefixLength is the length of prefix to show before masking
	SecretMaskPrefixLength = 4
	// SecretMaskSuffixLength is the length of suffix to show after masking
	SecretMaskSuffixLength = 4
)

// Logging defaults
const (
	// DefaultLogMaxSize is the default maximum log file size in MB
	DefaultLogMaxSize = 100
	// DefaultLogMaxBackups is the default number of rotated files to keep
	DefaultLogMaxBackups = 5
	// DefaultLogMaxAge is the default maximum number of days to retain old logs
	DefaultLogMaxAge = 30
	// HTTPSuccessStatusCode is the standard HTTP success status code
	HTTPSuccessStatusCode = 200
)
