// Package console implements the operator console: tagged colored output and
// the interactive command loop that drives the instance controller.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/keepmind9/hashbang/internal/core"
)

const banner = `    __  __           __    ____                         __ __  __
   / / / /___ ______/ /_  / __ )____ _____  ____ _   __/ // /_/ /
  / /_/ / __ ` + "`" + `/ ___/ __ \/ __  / __ ` + "`" + `/ __ \/ __ ` + "`" + `/  /_  _  __/ / 
 / __  / /_/ (__  ) / / / /_/ / /_/ / / / / /_/ /  /_  _  __/_/  
/_/ /_/\__,_/____/_/ /_/_____/\__,_/_/ /_/\__, /    /_//_/ (_)   
                                         /____/                  `

// ConOut writes tagged lines such as "[OK] Instance 'libera' started".
// It is safe for concurrent use.
type ConOut struct {
	mu sync.Mutex
	w  io.Writer

	info   lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	err    lipgloss.Style
	banner lipgloss.Style
	prompt lipgloss.Style
}

// New creates a ConOut. Colors are only emitted when w is a color terminal.
func New(w io.Writer) *ConOut {
	r := lipgloss.NewRenderer(w)
	return &ConOut{
		w:      w,
		info:   r.NewStyle().Foreground(lipgloss.Color("#14B8A6")),
		ok:     r.NewStyle().Foreground(lipgloss.Color("#22C55E")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		err:    r.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
		banner: r.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true),
		prompt: r.NewStyle().Foreground(lipgloss.Color("#0E7490")),
	}
}

func (c *ConOut) tagged(style lipgloss.Style, tag, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "[%s] %s\n", style.Render(tag), fmt.Sprintf(format, args...))
}

func (c *ConOut) Info(format string, args ...interface{})  { c.tagged(c.info, "INFO", format, args...) }
func (c *ConOut) Ok(format string, args ...interface{})    { c.tagged(c.ok, "OK", format, args...) }
func (c *ConOut) Warn(format string, args ...interface{})  { c.tagged(c.warn, "WARN", format, args...) }
func (c *ConOut) Error(format string, args ...interface{}) { c.tagged(c.err, "ERROR", format, args...) }

// Println writes an untagged line
func (c *ConOut) Println(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, text)
}

// Prompt writes the REPL prompt without a newline
func (c *ConOut) Prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.w, c.prompt.Render("#!>")+" ")
}

// Banner prints the startup logo and version
func (c *ConOut) Banner(version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, c.banner.Render(banner))
	fmt.Fprintf(c.w, "\n  version %s\n\n", version)
}

// InstanceDied reports an unexpected death
func (c *ConOut) InstanceDied(name string, _ *core.Instance) {
	c.Error("Instance '%s' has died", name)
}

// InstanceCleanedUp reports the end of death cleanup
func (c *ConOut) InstanceCleanedUp(name string, _ *core.Instance) {
	c.Ok("Instance '%s' cleaned up after death", name)
}

// ConfigReloaded reports a watcher-triggered reload
func (c *ConOut) ConfigReloaded(cfg *core.Config, err error) {
	if err != nil {
		c.Error("Configuration reload failed: %v", err)
		return
	}
	c.Ok("Configuration reloaded (%d instances)", len(cfg.Instances))
}
