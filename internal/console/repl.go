package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/keepmind9/hashbang/internal/core"
	"github.com/keepmind9/hashbang/internal/logger"
	"github.com/keepmind9/hashbang/internal/transport"
)

var helpText = []string{
	"=====================",
	"=== HashBang HELP ===",
	"=====================",
	"",
	"<parameter> - Required parameter",
	"[parameter] - Optional parameter",
	"",
	"<<parameter>> - Required parameter with strict options shown",
	"[[parameter]] - Optional parameter with strict options shown",
	"",
	"=====================",
	"",
	"help - This command",
	"restart [instance] - Restart one or all instances",
	"stop [instance] - Stop one or all instances",
	"start [instance] - Start one or all instances",
	"list <<all/started/stopped>> - Show a list of instances in the specified state",
	"attach <instance> - Attach to and take full control of the specified instance",
	"reload - Reload the configuration file",
	"quit - Stop all instances and quit",
}

// REPL reads operator commands line by line and drives a controller
type REPL struct {
	controller *core.Controller
	out        *ConOut
	in         *bufio.Scanner
	prompt     bool
	configPath string
}

// Option configures a REPL
type Option func(*REPL)

// WithPrompt shows the "#!>" prompt before each command
func WithPrompt(show bool) Option {
	return func(r *REPL) { r.prompt = show }
}

// WithConfigPath enables the reload command
func WithConfigPath(path string) Option {
	return func(r *REPL) { r.configPath = path }
}

// NewREPL creates a REPL reading commands from in
func NewREPL(c *core.Controller, in io.Reader, out *ConOut, opts ...Option) *REPL {
	r := &REPL{controller: c, out: out, in: bufio.NewScanner(in)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes commands until quit, end of input or ctx is done.
// It returns true when the operator asked to quit.
func (r *REPL) Run(ctx context.Context) bool {
	for ctx.Err() == nil {
		if r.prompt {
			r.out.Prompt()
		}
		line, ok := r.readLine()
		if !ok {
			return false
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if r.Execute(ctx, line) {
			return true
		}
	}
	return false
}

func (r *REPL) readLine() (string, bool) {
	if !r.in.Scan() {
		return "", false
	}
	return r.in.Text(), true
}

// Execute runs one command line and reports whether it was a confirmed quit
func (r *REPL) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch strings.ToLower(parts[0]) {
	case "help":
		for _, l := range helpText {
			r.out.Println(l)
		}
	case "start":
		r.start(arg)
	case "stop":
		r.stop(ctx, arg)
	case "restart":
		r.restart(ctx, arg)
	case "list":
		r.list(arg)
	case "attach":
		r.attach(arg)
	case "reload":
		r.reload()
	case "quit", "exit":
		return r.quit(ctx)
	default:
		r.out.Warn("Unknown Command")
	}
	return false
}

// confirm asks a [y/N] question; anything but y or yes declines
func (r *REPL) confirm(question string) bool {
	r.out.Warn("%s [y/N]", question)
	answer, ok := r.readLine()
	if !ok {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (r *REPL) start(name string) {
	if name == "" {
		if !r.confirm("Are you sure you want to start all instances?") {
			return
		}
		r.reportStarts(r.controller.StartAll(false))
		return
	}

	err := r.controller.Start(name)
	switch {
	case err == nil:
		r.out.Ok("Instance '%s' started", name)
	case errors.Is(err, core.ErrInstanceExists):
		r.out.Error("The requested instance '%s' is already running", name)
	case errors.Is(err, core.ErrUnknownInstanceConfig):
		r.out.Error("The requested instance '%s' does not exist", name)
	default:
		r.out.Error("Instance start error for '%s': %v", name, err)
	}
}

// AutoStart starts every instance flagged for autostart
func (r *REPL) AutoStart() {
	r.out.Info("Autostarting instances...")
	r.reportStarts(r.controller.StartAll(true))
}

func (r *REPL) reportStarts(results []core.Result) {
	for _, res := range results {
		if res.Err != nil {
			r.out.Error("Instance start error for '%s': %v", res.Name, res.Err)
			continue
		}
		r.out.Ok("Instance '%s' started", res.Name)
	}
}

func (r *REPL) reportStops(results []core.Result) {
	for _, res := range results {
		if res.Err != nil {
			r.out.Error("Instance stop error for '%s': %v", res.Name, res.Err)
			continue
		}
		r.out.Ok("Instance '%s' stopped", res.Name)
	}
}

func (r *REPL) stop(ctx context.Context, name string) {
	if name == "" {
		if !r.confirm("Are you sure you want to stop all instances?") {
			return
		}
		r.out.Info("All instances are going down for stop...")
		r.reportStops(r.controller.StopAll(ctx))
		return
	}

	if err := r.controller.Stop(name); err != nil {
		r.out.Error("The requested instance '%s' could not be found", name)
		return
	}
	r.out.Ok("Instance '%s' stopped", name)
}

func (r *REPL) restart(ctx context.Context, name string) {
	if name == "" {
		if !r.confirm("Are you sure you want to restart all instances?") {
			return
		}
		r.out.Info("All instances are going down for restart...")
		r.reportStarts(r.controller.RestartAll(ctx))
		return
	}

	if !r.controller.Supervisor().Contains(name) {
		r.out.Error("The requested instance '%s' could not be found", name)
		return
	}
	if err := r.controller.Restart(name); err != nil {
		r.out.Error("Instance restart error for '%s': %v", name, err)
		return
	}
	r.out.Ok("Instance '%s' restarted", name)
}

func (r *REPL) list(mode string) {
	if mode == "" {
		r.out.Error("No list type was specified")
		return
	}
	filter, err := core.ParseListFilter(mode)
	if err != nil {
		r.out.Error("Invalid list type was specified")
		return
	}

	for _, s := range r.controller.List(filter) {
		if filter != core.FilterAll {
			r.out.Println("> " + s.Name)
			continue
		}
		state := "Stopped"
		if s.Started() {
			state = "Started"
		}
		r.out.Println("> " + s.Name + " - " + state)
	}
}

func (r *REPL) attach(name string) {
	if name == "" {
		r.out.Error("No instance was specified")
		return
	}
	a, err := r.controller.Attach(name)
	if err != nil {
		if errors.Is(err, core.ErrInstanceNotFound) {
			r.out.Error("The requested instance '%s' could not be found", name)
		} else {
			r.out.Error("%v", err)
		}
		return
	}

	r.out.Warn("Now attaching to instance '%s'. Type 'detach' to detach again", name)
	unsubscribe := a.OnTranscript(func(dir transport.Direction, line string) {
		r.out.Println(dir.String() + "    " + line)
	})
	defer unsubscribe()

	t, _ := a.(transport.Transport)
	for t == nil || !t.IsTornDown() {
		line, ok := r.readLine()
		if !ok || strings.EqualFold(strings.TrimSpace(line), "detach") {
			break
		}
		if err := a.SendRaw(line); err != nil {
			logger.ForInstance(name).WithError(err).Debug("attach-send-failed")
		}
	}
	r.out.Info("Detached from instance '%s'", name)
}

func (r *REPL) reload() {
	if r.configPath == "" {
		r.out.Error("No configuration file to reload")
		return
	}
	cfg, err := r.controller.Reload(r.configPath)
	r.out.ConfigReloaded(cfg, err)
}

func (r *REPL) quit(ctx context.Context) bool {
	if !r.confirm("Are you sure you want to stop all instances and quit?") {
		return false
	}
	r.out.Info("All instances are going down for quit...")
	r.reportStops(r.controller.Shutdown(ctx))
	return true
}
