package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// DefaultRecorderCommand captures 16 kHz mono 16-bit PCM on ALSA systems.
const DefaultRecorderCommand = "arecord -q -t raw -f S16_LE -c 1 -r 16000"

// ErrNoRecorder is returned when the recorder command is empty.
var ErrNoRecorder = errors.New("no recorder command configured")

// Recorder runs an external capture program and exposes its raw PCM output.
type Recorder struct {
	command string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	logger *log.Logger
}

// NewRecorder creates a recorder for the given command line.
func NewRecorder(command string) *Recorder {
	return &Recorder{
		command: command,
		logger:  log.Default().WithPrefix("recorder"),
	}
}

// Start launches the capture program. The returned reader yields raw PCM
// until Stop is called or ctx is cancelled.
func (r *Recorder) Start(ctx context.Context) (io.Reader, error) {
	fields := strings.Fields(r.command)
	if len(fields) == 0 {
		return nil, ErrNoRecorder
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd != nil {
		return nil, errors.New("recorder already running")
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("recorder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", fields[0], err)
	}

	r.cmd = cmd
	r.stdout = stdout
	r.logger.Debug("Recorder started", "command", r.command, "pid", cmd.Process.Pid)
	return stdout, nil
}

// Stop ends the capture program. It is safe to call when not running.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	cmd := r.cmd
	stdout := r.stdout
	r.cmd = nil
	r.stdout = nil
	r.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	if stdout != nil {
		_ = stdout.Close()
	}
	// The exit status after Kill is always an error.
	_ = cmd.Wait()
	r.logger.Debug("Recorder stopped")
	return nil
}

// ReadFrame reads one frame of n 16-bit samples from r.
func ReadFrame(r io.Reader, n int) ([]byte, error) {
	frame := make([]byte, n*bytesPerSample)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}
