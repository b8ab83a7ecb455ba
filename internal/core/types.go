package core

// Protocol selects the transport adapter of an instance
type Protocol string

const (
	ProtocolIRC      Protocol = "irc"
	ProtocolDiscord  Protocol = "discord"
	ProtocolTelegram Protocol = "telegram"
)

// State is the supervisor's view of an instance
type State string

const (
	StateConnected State = "connected" // Transport connected
	StateUnused    State = "unused"    // Added but never successfully started
	StateDead      State = "dead"      // Disconnected and torn down
	StateStopped   State = "stopped"   // Configured but not supervised
)

// Config represents the complete hashbang configuration structure
type Config struct {
	AutoStart bool             `yaml:"autostart" toml:"autostart"`
	Instances []InstanceConfig `yaml:"instances" toml:"instances"`
	Logging   LoggingConfig    `yaml:"logging" toml:"logging"`
	Status    StatusConfig     `yaml:"status" toml:"status"`
}

// InstanceConfig describes one chat connection
type InstanceConfig struct {
	Name          string     `yaml:"name" toml:"name"`
	AutoStart     bool       `yaml:"autostart" toml:"autostart"`
	Protocol      Protocol   `yaml:"protocol" toml:"protocol"`
	CommandPrefix string     `yaml:"command_prefix" toml:"command_prefix"`
	Host          string     `yaml:"host" toml:"host"`
	Port          int        `yaml:"port" toml:"port"`
	SSL           bool       `yaml:"ssl" toml:"ssl"`
	Nick          string     `yaml:"nick" toml:"nick"`
	Username      string     `yaml:"username" toml:"username"`
	RealName      string     `yaml:"realname" toml:"realname"`
	Channels      []string   `yaml:"channels" toml:"channels"`
	SASL          SASLConfig `yaml:"sasl" toml:"sasl"`
	Token         string     `yaml:"token" toml:"token"` // Discord / Telegram bot token
}

// SASLConfig represents IRC SASL PLAIN credentials
type SASLConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" toml:"level"`                 // debug, info, warn, error
	File         string `yaml:"file" toml:"file"`                   // Log file path
	MaxSize      int    `yaml:"max_size" toml:"max_size"`           // Single file max size in MB (default: 100)
	MaxBackups   int    `yaml:"max_backups" toml:"max_backups"`     // Number of backups to keep (default: 5)
	MaxAge       int    `yaml:"max_age" toml:"max_age"`             // Maximum days to retain (default: 30)
	Compress     *bool  `yaml:"compress" toml:"compress"`           // Compress old logs (default: true)
	EnableStdout *bool  `yaml:"enable_stdout" toml:"enable_stdout"` // Also output to stdout (default: false, the console owns stdout)
}

// StatusConfig represents the status HTTP server
type StatusConfig struct {
	Listen string `yaml:"listen" toml:"listen"` // e.g. "127.0.0.1:9180"; empty disables the server
}

// InstanceStatus is one row of an instance listing
type InstanceStatus struct {
	Name     string   `json:"name"`
	Protocol Protocol `json:"protocol"`
	State    State    `json:"state"`
	RunID    string   `json:"run_id,omitempty"`
}

// Started reports whether the instance is connected
func (s InstanceStatus) Started() bool {
	return s.State == StateConnected
}

// Snapshot partitions supervised instances by state
type Snapshot struct {
	Connected []string `json:"connected"`
	Unused    []string `json:"unused"`
	Dead      []string `json:"dead"`
}
