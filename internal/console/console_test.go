package console

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keepmind9/hashbang/internal/core"
	"github.com/keepmind9/hashbang/internal/transport"
	"github.com/keepmind9/hashbang/internal/transport/transporttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	controller *core.Controller
	fakes      map[string]*transporttest.Fake
	out        *bytes.Buffer
	con        *ConOut
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{fakes: make(map[string]*transporttest.Fake), out: &bytes.Buffer{}}
	h.con = New(h.out)
	cfg := &core.Config{Instances: []core.InstanceConfig{
		{Name: "libera", AutoStart: true, Protocol: core.ProtocolIRC, CommandPrefix: "!", Host: "h", Nick: "n"},
		{Name: "oftc", Protocol: core.ProtocolIRC, CommandPrefix: "!", Host: "h", Nick: "n"},
	}}
	sup := core.NewSupervisor(core.WithDeathHandler(h.con.InstanceDied), core.WithCleanupHandler(h.con.InstanceCleanedUp))
	h.controller = core.NewController(cfg, func(ic core.InstanceConfig) (transport.Transport, error) {
		f := transporttest.New()
		h.fakes[ic.Name] = f
		return f, nil
	}, core.WithSupervisor(sup))
	return h
}

func (h *harness) run(t *testing.T, input string, opts ...Option) bool {
	t.Helper()
	return NewREPL(h.controller, strings.NewReader(input), h.con, opts...).Run(context.Background())
}

func TestConOut_Tags(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf)

	c.Info("one %d", 1)
	c.Ok("two")
	c.Warn("three")
	c.Error("four")

	assert.Equal(t, "[INFO] one 1\n[OK] two\n[WARN] three\n[ERROR] four\n", buf.String())
}

func TestConOut_Banner(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Banner("1.0.0")
	assert.Contains(t, buf.String(), "/____/")
	assert.Contains(t, buf.String(), "version 1.0.0")
}

func TestREPL_StartStopList(t *testing.T) {
	h := newHarness(t)

	quit := h.run(t, "start libera\nstart libera\nstart efnet\nlist all\nlist started\nlist stopped\nstop libera\nstop libera\n")
	assert.False(t, quit)

	assert.Equal(t, strings.Join([]string{
		"[OK] Instance 'libera' started",
		"[ERROR] The requested instance 'libera' is already running",
		"[ERROR] The requested instance 'efnet' does not exist",
		"> libera - Started",
		"> oftc - Stopped",
		"> libera",
		"> oftc",
		"[OK] Instance 'libera' stopped",
		"[ERROR] The requested instance 'libera' could not be found",
	}, "\n")+"\n", h.out.String())
}

func TestREPL_ListErrors(t *testing.T) {
	h := newHarness(t)
	h.run(t, "list\nlist running\nbogus\n")

	assert.Equal(t, "[ERROR] No list type was specified\n[ERROR] Invalid list type was specified\n[WARN] Unknown Command\n", h.out.String())
}

func TestREPL_BulkCommandsAskForConfirmation(t *testing.T) {
	h := newHarness(t)

	h.run(t, "start\nn\n")
	assert.Empty(t, h.controller.Supervisor().List())

	h.run(t, "start\ny\n")
	assert.Len(t, h.controller.Supervisor().ListConnected(), 2)

	h.out.Reset()
	h.run(t, "stop\nY\n")
	assert.Empty(t, h.controller.Supervisor().List())
	assert.Contains(t, h.out.String(), "[INFO] All instances are going down for stop...")
	assert.Contains(t, h.out.String(), "[OK] Instance 'oftc' stopped")
	assert.NotContains(t, h.out.String(), "has died")
}

func TestREPL_Restart(t *testing.T) {
	h := newHarness(t)
	h.run(t, "restart oftc\nstart libera\nrestart libera\n")

	out := h.out.String()
	assert.Contains(t, out, "[ERROR] The requested instance 'oftc' could not be found")
	assert.Contains(t, out, "[OK] Instance 'libera' restarted")
	assert.NotContains(t, out, "has died")
	assert.True(t, h.fakes["libera"].IsConnected())
}

func TestREPL_ReportsDeath(t *testing.T) {
	h := newHarness(t)
	h.run(t, "start libera\n")

	h.fakes["libera"].Kill()

	assert.Contains(t, h.out.String(), "[ERROR] Instance 'libera' has died\n[OK] Instance 'libera' cleaned up after death\n")
}

func TestREPL_Attach(t *testing.T) {
	h := newHarness(t)
	h.run(t, "start libera\n")
	f := h.fakes["libera"]
	h.out.Reset()

	h.run(t, "attach libera\nPRIVMSG #bots :hello\nDETACH\n")

	assert.Equal(t, []transporttest.Sent{{Kind: transporttest.KindRaw, Text: "PRIVMSG #bots :hello"}}, f.Sent())
	out := h.out.String()
	assert.Contains(t, out, "[WARN] Now attaching to instance 'libera'. Type 'detach' to detach again")
	assert.Contains(t, out, "<<<    raw  :PRIVMSG #bots :hello")
	assert.Contains(t, out, "[INFO] Detached from instance 'libera'")

	h.out.Reset()
	f.Deliver(transport.Message{Raw: ":alice PRIVMSG #bots :after"})
	assert.Empty(t, h.out.String(), "detached consoles see no traffic")
}

func TestREPL_AttachErrors(t *testing.T) {
	h := newHarness(t)
	h.run(t, "attach\nattach libera\n")
	assert.Equal(t, "[ERROR] No instance was specified\n[ERROR] The requested instance 'libera' could not be found\n", h.out.String())
}

func TestREPL_Reload(t *testing.T) {
	h := newHarness(t)
	h.run(t, "reload\n")
	assert.Equal(t, "[ERROR] No configuration file to reload\n", h.out.String())

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("instances:\n  - name: efnet\n    host: h\n    nick: n\n"), 0o600))

	h.out.Reset()
	h.run(t, "reload\n", WithConfigPath(path))
	assert.Equal(t, "[OK] Configuration reloaded (1 instances)\n", h.out.String())
}

func TestREPL_Quit(t *testing.T) {
	h := newHarness(t)
	h.run(t, "start libera\n")

	assert.False(t, h.run(t, "quit\nno\n"))
	assert.True(t, h.fakes["libera"].IsConnected())

	h.out.Reset()
	assert.True(t, h.run(t, "quit\ny\nstart libera\n"))
	assert.False(t, h.fakes["libera"].IsConnected())
	assert.Empty(t, h.controller.Supervisor().List())
	assert.Equal(t, "[WARN] Are you sure you want to stop all instances and quit? [y/N]\n[INFO] All instances are going down for quit...\n[OK] Instance 'libera' stopped\n", h.out.String())
}

func TestREPL_Help(t *testing.T) {
	h := newHarness(t)
	h.run(t, "HELP\n")
	assert.Contains(t, h.out.String(), "=== HashBang HELP ===")
	assert.Contains(t, h.out.String(), "attach <instance>")
}

func TestREPL_Prompt(t *testing.T) {
	h := newHarness(t)
	h.run(t, "\n", WithPrompt(true))
	assert.Equal(t, "#!> #!> ", h.out.String())
}

func TestREPL_AutoStart(t *testing.T) {
	h := newHarness(t)

	NewREPL(h.controller, strings.NewReader(""), h.con).AutoStart()

	assert.Equal(t, "[INFO] Autostarting instances...\n[OK] Instance 'libera' started\n", h.out.String())
	assert.True(t, h.fakes["libera"].IsConnected())
	_, started := h.fakes["oftc"]
	assert.False(t, started)
}
