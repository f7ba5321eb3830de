package devnode

import (
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	DefaultTermTimeout = 10 * time.Second
	termInterval       = time.Second
)

var (
	ErrAlreadyStarted = errors.New("node process already started")
	ErrEmptyCommand   = errors.New("node command is empty")
)

// Guard owns one node subprocess. Start and Stop are exclusive; Stop asks the
// process to terminate once per interval and kills it after the term timeout.
type Guard struct {
	cmd         []string
	termTimeout time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	proc *exec.Cmd
	done chan struct{}
	err  error
}

func NewGuard(cmd []string, termTimeout time.Duration, logger *slog.Logger) *Guard {
	if termTimeout <= 0 {
		termTimeout = DefaultTermTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		cmd:         append([]string(nil), cmd...),
		termTimeout: termTimeout,
		logger:      logger,
	}
}

func (g *Guard) Command() []string {
	return append([]string(nil), g.cmd...)
}

// Start launches the process with stdio detached.
func (g *Guard) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.proc != nil {
		return ErrAlreadyStarted
	}
	if len(g.cmd) == 0 {
		return ErrEmptyCommand
	}
	g.logger.Info("starting node", "command", strings.Join(g.cmd, " "))
	c := exec.Command(g.cmd[0], g.cmd[1:]...)
	if err := c.Start(); err != nil {
		return err
	}
	done := make(chan struct{})
	g.proc = c
	g.done = done
	g.err = nil
	go func() {
		err := c.Wait()
		g.mu.Lock()
		g.err = err
		g.mu.Unlock()
		close(done)
	}()
	return nil
}

// Running reports whether a started process has not exited yet.
func (g *Guard) Running() bool {
	g.mu.Lock()
	done := g.done
	started := g.proc != nil
	g.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Done is closed when the current process exits. It is nil before Start.
func (g *Guard) Done() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

func (g *Guard) Pid() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.proc == nil || g.proc.Process == nil {
		return 0
	}
	return g.proc.Process.Pid
}

// Stop terminates the process and waits for it. Calling Stop on a guard that
// was never started is a no-op.
func (g *Guard) Stop() error {
	g.mu.Lock()
	c, done := g.proc, g.done
	g.mu.Unlock()
	if c == nil {
		return nil
	}

	interval := termInterval
	if g.termTimeout < interval {
		interval = g.termTimeout
	}
	g.logger.Info("terminating node", "pid", c.Process.Pid)
	var waited time.Duration
	killed := false
	for !killed {
		if err := c.Process.Signal(syscall.SIGTERM); errors.Is(err, os.ErrProcessDone) {
			break
		}
		start := time.Now()
		timer := time.NewTimer(interval)
		select {
		case <-done:
			timer.Stop()
			killed = true
			continue
		case <-timer.C:
		}
		waited += time.Since(start)
		if waited >= g.termTimeout {
			g.logger.Warn("node did not terminate in time, killing it", "pid", c.Process.Pid, "waited", waited)
			if err := c.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				return err
			}
			killed = true
		}
	}
	<-done

	g.mu.Lock()
	g.proc = nil
	g.done = nil
	g.mu.Unlock()
	g.logger.Info("node terminated")
	return nil
}
