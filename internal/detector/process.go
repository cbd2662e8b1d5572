package detector

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ErrProcessExited is returned by Detect after the detector process has
// stopped and every buffered detection has been drained.
var ErrProcessExited = errors.New("detector process exited")

// ProcessConfig describes an external detector executable.
type ProcessConfig struct {
	// Command is the executable to run.
	Command string
	// Args are passed to Command.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// QueueCapacity bounds detections buffered between ticks.
	QueueCapacity int
}

// ProcessDetector runs an external detector that writes one JSON detection
// per line on stdout, e.g. {"x":812,"y":440,"timestamp_ms":1718000000123}.
// Lines without a timestamp are stamped on arrival. The process is started
// lazily on the first Detect.
type ProcessDetector struct {
	config  ProcessConfig
	queue   *Queue
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	mu      sync.Mutex
	started bool
	done    chan struct{}
	readErr error
	skipped int
}

// NewProcessDetector creates a detector for the given executable.
func NewProcessDetector(config ProcessConfig) (*ProcessDetector, error) {
	if config.Command == "" {
		return nil, fmt.Errorf("detector command is required")
	}

	return &ProcessDetector{
		config: config,
		queue:  NewQueue(config.QueueCapacity),
	}, nil
}

// Detect drains detections read from the process since the last call.
func (d *ProcessDetector) Detect() ([]Detection, error) {
	d.mu.Lock()
	if err := d.ensureStarted(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	done := d.done
	d.mu.Unlock()

	detections, _ := d.queue.Detect()
	if len(detections) > 0 {
		return detections, nil
	}

	select {
	case <-done:
		// The reader may have pushed its final lines after the drain above.
		if rest, _ := d.queue.Detect(); len(rest) > 0 {
			return rest, nil
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.readErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrProcessExited, d.readErr)
		}
		return nil, ErrProcessExited
	default:
		return nil, nil
	}
}

// Skipped returns the number of stdout lines that failed to parse.
func (d *ProcessDetector) Skipped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.skipped
}

// Close stops the detector process.
func (d *ProcessDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *ProcessDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = exec.Command(d.config.Command, d.config.Args...)
	d.cmd.Dir = d.config.Dir

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Surface detector diagnostics.
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start detector process: %w", err)
	}

	d.stdout = stdout
	d.done = make(chan struct{})
	d.started = true

	go d.readLoop(stdout, d.done)

	return nil
}

// readLoop parses stdout until EOF. Unparseable lines are counted and skipped.
func (d *ProcessDetector) readLoop(r io.Reader, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var det Detection
		if err := json.Unmarshal(line, &det); err != nil {
			d.mu.Lock()
			d.skipped++
			d.mu.Unlock()
			continue
		}
		if det.Timestamp.IsZero() {
			det.Timestamp = time.Now()
		}
		d.queue.Push(det)
	}

	if err := scanner.Err(); err != nil {
		d.mu.Lock()
		d.readErr = err
		d.mu.Unlock()
	}
}

func (d *ProcessDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdout = nil

	// A killed process reports a signal error; that is the expected outcome.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
