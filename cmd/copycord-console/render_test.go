package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Copycord/console/internal/status"
	"github.com/Copycord/console/internal/toast"
)

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "42s", formatUptime(42))
	assert.Equal(t, "2m05s", formatUptime(125))
	assert.Equal(t, "1h01m01s", formatUptime(3661))
	assert.Equal(t, "0s", formatUptime(0.4))
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	sec := 65.0
	printStatus(&buf, status.RoleServer, status.ProcessStatus{
		Role: status.RoleServer, Running: true, UptimeSec: &sec,
		StatusText: "syncing", OK: true,
	})
	out := buf.String()
	assert.Contains(t, out, "server")
	assert.Contains(t, out, "running=true")
	assert.Contains(t, out, "1m05s")
	assert.Contains(t, out, "syncing")
	assert.NotContains(t, out, "error:")

	buf.Reset()
	printStatus(&buf, status.RoleClient, status.ProcessStatus{
		Role: status.RoleClient, StatusText: "stopped", OK: false, ErrorText: "token rejected",
	})
	assert.Contains(t, buf.String(), "uptime=-")
	assert.Contains(t, buf.String(), "error: token rejected")
}

func TestRendererSkipsRepeatedSecond(t *testing.T) {
	var buf bytes.Buffer
	r := newTermRenderer(&buf, false)

	sec := 10.2
	st := status.ProcessStatus{Role: status.RoleServer, Running: true, UptimeSec: &sec, StatusText: "up", OK: true}
	r.OnStatusChange(status.RoleServer, st)

	// same whole second suppressed
	sec2 := 10.9
	st.UptimeSec = &sec2
	r.OnStatusChange(status.RoleServer, st)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))

	sec3 := 11.0
	st.UptimeSec = &sec3
	r.OnStatusChange(status.RoleServer, st)
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestRendererLockLines(t *testing.T) {
	var buf bytes.Buffer
	r := newTermRenderer(&buf, false)
	r.OnLockChange(true)
	r.OnLockChange(false)
	assert.Contains(t, buf.String(), "editing locked")
	assert.Contains(t, buf.String(), "editing unlocked")
}

func TestNotifyLevels(t *testing.T) {
	var buf bytes.Buffer
	r := newTermRenderer(&buf, false)
	r.Notify("k", "live connection lost", toast.LevelWarning)
	assert.Equal(t, "[warning] live connection lost\n", buf.String())

	buf.Reset()
	colored := newTermRenderer(&buf, true)
	colored.Notify("k", "ok", toast.LevelSuccess)
	assert.Contains(t, buf.String(), "\033[32m")
}
