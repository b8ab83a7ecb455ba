package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/keepmind9/hashbang/internal/core"
	"github.com/spf13/cobra"
)

var (
	statusAddr   string
	statusConfig string
	statusJSON   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hashbang status",
	Long: `Query the status server of a running hashbang process and display every
instance with its state. The address comes from --addr, or from the
status.listen setting of the configuration file.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		addr, err := resolveStatusAddr(statusAddr, statusConfig)
		if err != nil {
			fmt.Fprintf(out, "❌ %v\n", err)
			os.Exit(1)
		}

		report, err := core.FetchStatus(cmd.Context(), addr)
		if err != nil {
			fmt.Fprintf(out, "❌ %v\n", err)
			os.Exit(1)
		}
		if err := printStatus(out, report, statusJSON); err != nil {
			fmt.Fprintf(out, "{\"error\": \"failed to marshal json: %v\"}\n", err)
			os.Exit(1)
		}
	},
}

func resolveStatusAddr(addr, configPath string) (string, error) {
	if addr != "" {
		return addr, nil
	}
	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Status.Listen == "" {
		return "", fmt.Errorf("status server is disabled in %s (set status.listen or pass --addr)", configPath)
	}
	listen := cfg.Status.Listen
	if strings.HasPrefix(listen, ":") {
		listen = "127.0.0.1" + listen
	}
	return listen, nil
}

func printStatus(w io.Writer, report *core.StatusReport, jsonFormat bool) error {
	if jsonFormat {
		output, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	fmt.Fprintln(w, "hashbang status:")
	fmt.Fprintf(w, "  - Connected: %d\n", len(report.Connected))
	fmt.Fprintf(w, "  - Unused:    %d\n", len(report.Unused))
	fmt.Fprintf(w, "  - Dead:      %d\n", len(report.Dead))
	if len(report.Instances) > 0 {
		fmt.Fprintln(w, "\nInstances:")
		for _, inst := range report.Instances {
			if inst.RunID != "" {
				fmt.Fprintf(w, "  - %s (%s): %s [%s]\n", inst.Name, inst.Protocol, inst.State, inst.RunID)
				continue
			}
			fmt.Fprintf(w, "  - %s (%s): %s\n", inst.Name, inst.Protocol, inst.State)
		}
	}
	return nil
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Status server address (host:port)")
	statusCmd.Flags().StringVarP(&statusConfig, "config", "c", "config.yaml", "Configuration file path")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
}
