package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/keepmind9/hashbang/internal/core"
	"github.com/spf13/cobra"
)

var (
	validateConfigFile string
	validateShow       bool
	validateJSON       bool
)

// ValidationResult represents the validation result
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Config    string   `json:"config"`
	Instances int      `json:"instances"`
	AutoStart int      `json:"autostart"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// defaultConfigLocations are searched in order when --config is not given
func defaultConfigLocations() []string {
	return []string{
		"config.yaml",
		"config.toml",
		filepath.Join(os.Getenv("HOME"), ".config/hashbang/config.yaml"),
		"/etc/hashbang/config.yaml",
	}
}

// findConfigFile returns explicit when set, otherwise the first existing default location
func findConfigFile(explicit string, locations []string) string {
	if explicit != "" {
		return explicit
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate hashbang configuration file",
	Long: `Validate the hashbang configuration file without starting any instance.

This command checks:
  - YAML or TOML syntax
  - Environment variable references
  - Required fields per protocol
  - Duplicate instance names
  - SASL credentials

Exit codes:
  0 - Configuration is valid
  1 - Configuration has errors`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		locations := defaultConfigLocations()
		path := findConfigFile(validateConfigFile, locations)
		if path == "" {
			fmt.Fprintln(out, "❌ No configuration file found")
			fmt.Fprintln(out, "\nSpecify a config file with --config or ensure one exists at:")
			for _, loc := range locations {
				fmt.Fprintf(out, "  - %s\n", loc)
			}
			os.Exit(1)
		}

		cfg, result := validateFile(path)
		if cfg != nil && validateShow {
			showConfig(out, path, cfg)
		}
		outputValidationResult(out, result, validateJSON)

		if !result.Valid {
			os.Exit(1)
		}
	},
}

// validateFile loads path and collects errors and warnings
func validateFile(path string) (*core.Config, ValidationResult) {
	cfg, err := core.LoadConfig(path)
	if err != nil {
		return nil, ValidationResult{
			Valid:  false,
			Config: path,
			Errors: []string{err.Error()},
		}
	}

	result := ValidationResult{
		Valid:     true,
		Config:    path,
		Instances: len(cfg.Instances),
		Warnings:  validateConfigDetails(cfg),
	}
	if cfg.AutoStart {
		for _, inst := range cfg.Instances {
			if inst.AutoStart {
				result.AutoStart++
			}
		}
	}
	return cfg, result
}

func showConfig(w io.Writer, path string, cfg *core.Config) {
	fmt.Fprintf(w, "✓ Configuration loaded: %s\n\n", path)
	fmt.Fprintf(w, "Instances (%d):\n", len(cfg.Instances))
	for _, inst := range cfg.Instances {
		autoStart := "no"
		if inst.AutoStart {
			autoStart = "yes"
		}
		switch inst.Protocol {
		case core.ProtocolIRC:
			fmt.Fprintf(w, "  - %s: %s %s:%d as %s (auto_start: %s)\n",
				inst.Name, inst.Protocol, inst.Host, inst.Port, inst.Nick, autoStart)
		default:
			fmt.Fprintf(w, "  - %s: %s (auto_start: %s)\n", inst.Name, inst.Protocol, autoStart)
		}
	}
	if cfg.Status.Listen != "" {
		fmt.Fprintf(w, "\nStatus server: %s\n", cfg.Status.Listen)
	}
	fmt.Fprintln(w)
}

func outputValidationResult(w io.Writer, result ValidationResult, jsonFormat bool) {
	if jsonFormat {
		output, err := json.Marshal(result)
		if err != nil {
			fmt.Fprintf(w, "{\"error\": \"failed to marshal json: %v\"}\n", err)
			return
		}
		fmt.Fprintln(w, string(output))
		return
	}

	if result.Valid {
		fmt.Fprintln(w, "✓ Configuration is valid")
		fmt.Fprintf(w, "  - Config: %s\n", result.Config)
		fmt.Fprintf(w, "  - Instances: %d\n", result.Instances)
		fmt.Fprintf(w, "  - Autostart: %d\n", result.AutoStart)
		if len(result.Warnings) > 0 {
			fmt.Fprintln(w, "\n⚠️  Warnings:")
			for _, warning := range result.Warnings {
				fmt.Fprintf(w, "  - %s\n", warning)
			}
		}
		return
	}

	fmt.Fprintln(w, "❌ Configuration validation failed:")
	if len(result.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, errMsg := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", errMsg)
		}
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
}

// validateConfigDetails reports settings that load but are probably mistakes
func validateConfigDetails(cfg *core.Config) []string {
	var warnings []string

	flagged := 0
	for _, inst := range cfg.Instances {
		if inst.AutoStart {
			flagged++
		}
		if inst.Protocol != core.ProtocolIRC {
			continue
		}
		if len(inst.Channels) == 0 {
			warnings = append(warnings, fmt.Sprintf("Instance '%s' joins no channels", inst.Name))
		}
		if inst.SASL.Enabled && !inst.SSL {
			warnings = append(warnings, fmt.Sprintf("Instance '%s' sends SASL credentials without TLS", inst.Name))
		}
	}

	if !cfg.AutoStart && flagged > 0 {
		warnings = append(warnings, "Global autostart is disabled - per-instance autostart flags are ignored")
	}
	if cfg.AutoStart && flagged == 0 {
		warnings = append(warnings, "Global autostart is enabled but no instance has autostart set")
	}

	return warnings
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "config", "c", "", "Configuration file path")
	validateCmd.Flags().BoolVar(&validateShow, "show", false, "Show full configuration details")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output in JSON format")
}
