package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/Copycord/console/internal/status"
	"github.com/Copycord/console/internal/toast"
)

// termRenderer prints status lines and toasts to the terminal. It implements
// console.Renderer, console.Notifier and the optional toggle-control hook.
type termRenderer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool

	lastUptime map[status.Role]int64
}

func newTermRenderer(w io.Writer, color bool) *termRenderer {
	return &termRenderer{w: w, color: color, lastUptime: make(map[status.Role]int64)}
}

func (t *termRenderer) OnStatusChange(role status.Role, st status.ProcessStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Uptime extrapolation ticks every second; only reprint when the whole
	// second changed to keep the output readable.
	if st.Running && st.UptimeSec != nil {
		sec := int64(*st.UptimeSec)
		if t.lastUptime[role] == sec {
			return
		}
		t.lastUptime[role] = sec
	} else {
		delete(t.lastUptime, role)
	}
	printStatus(t.w, role, st)
}

func (t *termRenderer) OnLockChange(locked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if locked {
		fmt.Fprintln(t.w, "-- editing locked: a clone process is running --")
	} else {
		fmt.Fprintln(t.w, "-- editing unlocked --")
	}
}

func (t *termRenderer) OnToggleEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !enabled {
		fmt.Fprintln(t.w, "-- start/stop pending confirmation --")
	}
}

func (t *termRenderer) Notify(key, msg string, level toast.Level) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prefix := string(level)
	if t.color {
		switch level {
		case toast.LevelSuccess:
			prefix = "\033[32m" + prefix + "\033[0m"
		case toast.LevelWarning:
			prefix = "\033[33m" + prefix + "\033[0m"
		case toast.LevelError:
			prefix = "\033[31m" + prefix + "\033[0m"
		}
	}
	fmt.Fprintf(t.w, "[%s] %s\n", prefix, msg)
}

func (t *termRenderer) ClearAll() {}

func printStatus(w io.Writer, role status.Role, st status.ProcessStatus) {
	uptime := "-"
	if st.UptimeSec != nil {
		uptime = formatUptime(*st.UptimeSec)
	}
	line := fmt.Sprintf("%-6s running=%-5v uptime=%-10s %s", role, st.Running, uptime, st.StatusText)
	if st.ErrorText != "" {
		line += "  error: " + st.ErrorText
	}
	fmt.Fprintln(w, line)
}

func formatUptime(sec float64) string {
	s := int64(sec)
	h := s / 3600
	m := (s % 3600) / 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s%60)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s%60)
	}
	return fmt.Sprintf("%ds", s)
}
