package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/camops/internal/logging"
)

// ErrNotRunning is returned by Write when the process is not accepting input.
var ErrNotRunning = errors.New("process not running")

// KilledExitCode is reported when the process had to be killed.
const KilledExitCode = 137

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// OutputHandlerFunc adapts a function to OutputHandler.
type OutputHandlerFunc func(source, line string)

// HandleLine calls f.
func (f OutputHandlerFunc) HandleLine(source, line string) {
	f(source, line)
}

// LogParser parses a log line and returns the log level and message.
type LogParser func(line string) (level, msg string)

// Option configures a Process.
type Option func(*Process)

// WithStdin opens a pipe to the child's standard input.
func WithStdin() Option {
	return func(p *Process) {
		p.useStdin = true
	}
}

// WithLogParser logs process output through logger, leveled by parser.
func WithLogParser(logger logging.Logger, parser LogParser) Option {
	return func(p *Process) {
		p.processLogger = logger
		p.logParser = parser
	}
}

// WithOutputHandler forwards every output line to h.
func WithOutputHandler(h OutputHandler) Option {
	return func(p *Process) {
		p.outputHandler = h
	}
}

// WithTimeouts sets how long Stop waits after closing stdin and after SIGINT.
func WithTimeouts(graceful, kill time.Duration) Option {
	return func(p *Process) {
		if graceful > 0 {
			p.gracefulTimeout = graceful
		}
		if kill > 0 {
			p.killTimeout = kill
		}
	}
}

// Process manages the lifecycle of one subprocess.
type Process struct {
	id            string
	command       string
	logger        logging.Logger
	processLogger logging.Logger // logger for process output (nil = use logger)
	logParser     LogParser      // parses process output for log level (nil = no parsing)
	outputHandler OutputHandler
	useStdin      bool

	gracefulTimeout time.Duration // wait after closing stdin, and again after SIGINT
	killTimeout     time.Duration // wait after Kill() before giving up

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	state     State
	startedAt time.Time
	exitCode  int
	lastErr   error
	stopOnce  sync.Once
	done      chan struct{}
}

// New creates a process for command. Nothing runs until Start.
func New(id, command string, logger logging.Logger, opts ...Option) *Process {
	p := &Process{
		id:              id,
		command:         command,
		logger:          logger,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
		state:           StateIdle,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Command returns the command string.
func (p *Process) Command() string {
	return p.command
}

// Start parses the command and starts the subprocess.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return fmt.Errorf("process %s already started", p.id)
	}

	err := p.startLocked()
	if err != nil {
		p.state = StateError
		p.lastErr = err
		p.exitCode = 1
		close(p.done)
	}
	return err
}

func (p *Process) startLocked() error {
	args, err := parseCommand(p.command)
	if err != nil {
		p.logger.Error("Failed to parse command", "error", err)
		return err
	}
	if len(args) == 0 {
		p.logger.Error("Empty command")
		return fmt.Errorf("empty command")
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if p.useStdin {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			p.logger.Error("Failed to create stdin pipe", "error", err)
			return err
		}
		p.stdin = stdin
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.logger.Error("Failed to create stdout pipe", "error", err)
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.logger.Error("Failed to create stderr pipe", "error", err)
		return err
	}

	if err := cmd.Start(); err != nil {
		p.logger.Error("Failed to start process", "error", err, "command", p.command)
		return err
	}

	p.cmd = cmd
	p.state = StateRunning
	p.startedAt = time.Now()
	p.logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid, "command", p.command)

	var output sync.WaitGroup
	output.Add(2)
	go func() {
		defer output.Done()
		p.streamOutput(stdout, "stdout")
	}()
	go func() {
		defer output.Done()
		p.streamOutput(stderr, "stderr")
	}()

	go func() {
		// Wait must follow the pipe readers per os/exec.
		output.Wait()
		p.finish(cmd.Wait())
	}()
	return nil
}

func (p *Process) finish(waitErr error) {
	exitCode := exitCodeFromError(waitErr)

	p.mu.Lock()
	if p.exitCode != KilledExitCode {
		p.exitCode = exitCode
	}
	if waitErr != nil && p.state != StateStopping {
		p.lastErr = waitErr
	}
	p.state = StateExited
	p.mu.Unlock()

	if waitErr != nil && exitCode == 1 {
		p.logger.Error("Process exited with error", "error", waitErr)
	}
	p.logger.Info("Process exited", "id", p.id, "exit_code", p.ExitCode())
	close(p.done)
}

// Write sends b to the child's stdin.
func (p *Process) Write(b []byte) (int, error) {
	p.mu.Lock()
	stdin, state := p.stdin, p.state
	p.mu.Unlock()

	if stdin == nil || state != StateRunning {
		return 0, ErrNotRunning
	}
	return stdin.Write(b)
}

// Done is closed once the process has exited or failed to start.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits and returns its exit code.
func (p *Process) Wait() int {
	<-p.done
	return p.ExitCode()
}

// Run starts the process and waits for it to exit.
func (p *Process) Run() int {
	if err := p.Start(); err != nil {
		return 1
	}
	return p.Wait()
}

// ExitCode returns the exit code, 0 while running.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Info returns a snapshot of the process state.
func (p *Process) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := Info{
		ID:        p.id,
		State:     p.state,
		StartedAt: p.startedAt,
		ExitCode:  p.exitCode,
		LastError: p.lastErr,
	}
	if p.cmd != nil && p.cmd.Process != nil {
		info.PID = p.cmd.Process.Pid
	}
	return info
}

// Stop ends the process and returns its exit code. stdin is closed first;
// SIGINT follows if the child has not exited within the graceful timeout,
// and SIGKILL after another one. Stop is safe to call more than once.
func (p *Process) Stop() int {
	p.stopOnce.Do(p.stop)
	return p.Wait()
}

func (p *Process) stop() {
	p.mu.Lock()
	if p.state == StateIdle {
		p.state = StateExited
		close(p.done)
	}
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	p.state = StateStopping
	stdin := p.stdin
	p.mu.Unlock()

	if stdin != nil {
		if err := stdin.Close(); err != nil {
			p.logger.Debug("Closing stdin failed", "error", err)
		}
		if p.waitFor(p.gracefulTimeout) {
			return
		}
	}

	p.sendStopSignal()
	if p.waitFor(p.gracefulTimeout) {
		return
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", p.gracefulTimeout)
	p.mu.Lock()
	p.exitCode = KilledExitCode
	p.mu.Unlock()
	// Kill the whole group so grandchildren release the output pipes.
	if err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL); err != nil {
		p.logger.Debug("Failed to kill process group", "error", err)
	}
	if err := p.cmd.Process.Kill(); err != nil {
		// "os: process already finished" is OK - process exited between timeout and kill
		if !errors.Is(err, os.ErrProcessDone) {
			p.logger.Error("Failed to kill process", "error", err)
		}
	}
	if !p.waitFor(p.killTimeout) {
		p.logger.Error("Process did not exit after kill signal")
	}
}

func (p *Process) waitFor(timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	p.logger.Info("Sending SIGINT to process", "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// streamOutput logs each output line and hands it to the output handler.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)
	// ffmpeg -stats rewrites its status line with '\r'.
	scanner.Split(scanLinesOrCR)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}

func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// parseCommand parses a command string into arguments
// Handles quoted strings and basic escaping.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	command = strings.TrimSpace(command)
	runes := []rune(command)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	return args, nil
}
