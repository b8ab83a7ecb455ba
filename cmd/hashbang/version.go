package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/keepmind9/hashbang/internal/core"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.Version=..." at build time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitBranch = "unknown"
	GitCommit = "unknown"
)

var versionJSON bool

// VersionOutput describes the build and what it can talk to
type VersionOutput struct {
	Version   string   `json:"version"`
	BuildTime string   `json:"build_time"`
	GitBranch string   `json:"git_branch"`
	GitCommit string   `json:"git_commit"`
	GoVersion string   `json:"go_version"`
	Protocols []string `json:"protocols"`
	Modules   []string `json:"modules"`
}

func buildInfo() VersionOutput {
	info := VersionOutput{
		Version:   Version,
		BuildTime: BuildTime,
		GitBranch: GitBranch,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Protocols: []string{
			string(core.ProtocolIRC),
			string(core.ProtocolDiscord),
			string(core.ProtocolTelegram),
		},
	}
	for _, m := range defaultModules() {
		info.Modules = append(info.Modules, m.Info().Name)
	}
	return info
}

func writeVersion(w io.Writer, info VersionOutput, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	rows := [][2]string{
		{"Built", info.BuildTime},
		{"Branch", info.GitBranch},
		{"Commit", info.GitCommit},
		{"Go", info.GoVersion},
		{"Protocols", strings.Join(info.Protocols, ", ")},
		{"Modules", strings.Join(info.Modules, ", ")},
	}
	if _, err := fmt.Fprintf(w, "hashbang %s\n", info.Version); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "  %-10s %s\n", row[0]+":", row[1]); err != nil {
			return err
		}
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the build version, the supported chat protocols and the modules loaded into every instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeVersion(cmd.OutOrStdout(), buildInfo(), versionJSON)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output in JSON format")
}
