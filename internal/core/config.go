// Package core provides instance supervision and configuration management for
// hashbang.
//
// The core package connects chat transports to the command engine. It handles:
//
//   - Configuration loading and validation (YAML or TOML files)
//   - Instances: one transport, one command registry, one dispatcher
//   - The supervisor that tracks instances and reacts to their deaths
//   - The controller that implements the operator vocabulary
//   - Metrics, the status HTTP server and config hot reload
//
// # Example Configuration
//
//	autostart: true
//	instances:
//	  - name: libera
//	    autostart: true
//	    host: irc.libera.chat
//	    ssl: true
//	    nick: hashbang
//	    channels: ["#hashbang"]
//	    sasl:
//	      enabled: true
//	      username: hashbang
//	      password: ${LIBERA_PASSWORD}
//	  - name: discord
//	    protocol: discord
//	    token: ${DISCORD_TOKEN}
//	status:
//	  listen: 127.0.0.1:9180
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/internal/transport"
	"github.com/keepmind9/hashbang/pkg/constants"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel        = "info"
	DefaultLogCompress     = true
	DefaultLogEnableStdout = false
)

// LoadConfig loads configuration from file and expands environment variables.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func LoadConfig(configPath string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		format = "toml"
	}
	return ParseConfig(data, format)
}

// ParseConfig decodes, defaults and validates configuration data
func ParseConfig(data []byte, format string) (*Config, error) {
	// Expand environment variables
	expandedData, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	var config Config
	switch format {
	case "toml":
		if _, err := toml.Decode(expandedData, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := os.Expand(input, func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		missingVars = append(missingVars, key)
		return ""
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}

	return result, nil
}

// validateConfig fills defaults and validates the configuration
func validateConfig(config *Config) error {
	// Set default logging configuration
	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = constants.DefaultLogMaxSize
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = constants.DefaultLogMaxBackups
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = constants.DefaultLogMaxAge
	}

	if len(config.Instances) == 0 {
		return fmt.Errorf("%w: at least one instance must be configured", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(config.Instances))
	for i := range config.Instances {
		inst := &config.Instances[i]
		if err := validateInstance(inst); err != nil {
			return err
		}

		key := transport.ToIRCLower(inst.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate instance name '%s'", ErrInvalidConfig, inst.Name)
		}
		seen[key] = struct{}{}
	}

	return nil
}

func validateInstance(inst *InstanceConfig) error {
	inst.Name = strings.TrimSpace(inst.Name)
	if inst.Name == "" {
		return fmt.Errorf("%w: instance name cannot be empty", ErrInvalidConfig)
	}
	if strings.ContainsAny(inst.Name, " \t") {
		return fmt.Errorf("%w: instance name '%s' cannot contain whitespace", ErrInvalidConfig, inst.Name)
	}

	if inst.Protocol == "" {
		inst.Protocol = constants.DefaultProtocol
	}
	inst.Protocol = Protocol(strings.ToLower(string(inst.Protocol)))
	if strings.TrimSpace(inst.CommandPrefix) == "" {
		inst.CommandPrefix = constants.DefaultCommandPrefix
	}

	switch inst.Protocol {
	case ProtocolIRC:
		if inst.Host == "" {
			return fmt.Errorf("%w: instance '%s' requires host", ErrInvalidConfig, inst.Name)
		}
		if inst.Nick == "" {
			return fmt.Errorf("%w: instance '%s' requires nick", ErrInvalidConfig, inst.Name)
		}
		if inst.Port == 0 {
			inst.Port = constants.DefaultIRCPort
			if inst.SSL {
				inst.Port = constants.DefaultIRCSSLPort
			}
		}
		if inst.Port < 1 || inst.Port > 65535 {
			return fmt.Errorf("%w: instance '%s' has invalid port %d", ErrInvalidConfig, inst.Name, inst.Port)
		}
		if inst.SASL.Enabled && (inst.SASL.Username == "" || inst.SASL.Password == "") {
			return fmt.Errorf("%w: instance '%s' enables sasl without username and password", ErrInvalidConfig, inst.Name)
		}
	case ProtocolDiscord, ProtocolTelegram:
		if inst.Token == "" {
			return fmt.Errorf("%w: instance '%s' requires token for %s", ErrInvalidConfig, inst.Name, inst.Protocol)
		}
	default:
		return fmt.Errorf("%w: instance '%s' has unsupported protocol '%s'", ErrInvalidConfig, inst.Name, inst.Protocol)
	}
	return nil
}

// Instance retrieves configuration for a named instance, case-insensitively
func (c *Config) Instance(name string) (InstanceConfig, error) {
	for _, inst := range c.Instances {
		if transport.EqualFoldIRC(inst.Name, name) {
			return inst, nil
		}
	}
	return InstanceConfig{}, fmt.Errorf("%w: %s", ErrUnknownInstanceConfig, name)
}

// LoggerConfig converts the logging section for logger.InitLogger
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:        c.Logging.Level,
		File:         c.Logging.File,
		MaxSize:      c.Logging.MaxSize,
		MaxBackups:   c.Logging.MaxBackups,
		MaxAge:       c.Logging.MaxAge,
		Compress:     boolOr(c.Logging.Compress, DefaultLogCompress),
		EnableStdout: boolOr(c.Logging.EnableStdout, DefaultLogEnableStdout),
	}
}

// IRCConfig converts an IRC instance definition for the IRC transport
func (ic InstanceConfig) IRCConfig(version string) transport.IRCConfig {
	return transport.IRCConfig{
		Host:         ic.Host,
		Port:         ic.Port,
		UseTLS:       ic.SSL,
		Nick:         ic.Nick,
		User:         ic.Username,
		RealName:     ic.RealName,
		Channels:     append([]string(nil), ic.Channels...),
		SASL:         ic.SASL.Enabled,
		SASLLogin:    ic.SASL.Username,
		SASLPassword: ic.SASL.Password,
		Version:      "hashbang " + version,
	}
}

// LogFields describes the instance for logs with secrets masked
func (ic InstanceConfig) LogFields() logrus.Fields {
	fields := logrus.Fields{
		"instance": ic.Name,
		"protocol": ic.Protocol,
	}
	switch ic.Protocol {
	case ProtocolIRC:
		fields["host"] = ic.Host
		fields["port"] = ic.Port
		fields["ssl"] = ic.SSL
		fields["nick"] = ic.Nick
		if ic.SASL.Enabled {
			fields["sasl_user"] = ic.SASL.Username
			fields["sasl_password"] = logger.MaskSecret(ic.SASL.Password)
		}
	default:
		fields["token"] = logger.MaskSecret(ic.Token)
	}
	return fields
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
