package llama

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/goosewin/codeagent/internal/backend"
	"github.com/goosewin/codeagent/internal/config"
)

// Name is the registry name of the local llama.cpp backend.
const Name = "llama"

// DefaultExecutable is resolved through PATH when no override is usable.
const DefaultExecutable = "llama-cli"

// ProcessResult is the merged output and exit status of one child process.
type ProcessResult struct {
	Output   string
	ExitCode int
}

// Launcher runs an executable to completion. A non-nil error means the
// process could not be started; a non-zero exit is reported in the result.
type Launcher interface {
	Launch(ctx context.Context, name string, args []string) (ProcessResult, error)
}

// DefaultWaitDelay bounds how long a cancelled launch waits for the
// output pipe after the process has been killed.
const DefaultWaitDelay = 3 * time.Second

// ExecLauncher launches processes with os/exec, merging stderr into stdout.
type ExecLauncher struct {
	// WaitDelay overrides DefaultWaitDelay. A wrapper script can leave a
	// grandchild holding the pipe open after the script itself is killed.
	WaitDelay time.Duration
}

func (l ExecLauncher) Launch(ctx context.Context, name string, args []string) (ProcessResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = l.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ProcessResult{Output: output.String(), ExitCode: exitErr.ExitCode()}, nil
	}
	if err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{Output: output.String()}, nil
}

// Options configures a Backend.
type Options struct {
	ModelPath string
	BinPath   string
	Threads   int
	Fs        afero.Fs
	Launcher  Launcher
}

type Backend struct {
	execPath  string
	modelPath string
	threads   int
	launcher  Launcher
}

var _ backend.Backend = (*Backend)(nil)

func init() {
	if err := backend.Register(Name, func(settings config.Settings) (backend.Backend, error) {
		return New(Options{
			ModelPath: settings.LlamaModelPath,
			BinPath:   settings.LlamaBinPath,
			Threads:   settings.LlamaThreads,
			Fs:        settings.Fs,
		})
	}); err != nil {
		panic(err)
	}
}

// New builds a local backend. The model path must name an existing file;
// otherwise the error wraps backend.ErrNotConfigured. The binary override
// is only honoured when it names an existing file.
func New(opts Options) (*Backend, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	modelPath := strings.TrimSpace(opts.ModelPath)
	if modelPath == "" {
		return nil, fmt.Errorf("%w: llama model path is empty", backend.ErrNotConfigured)
	}
	if !isFile(fs, modelPath) {
		return nil, fmt.Errorf("%w: llama model not found: %s", backend.ErrNotConfigured, modelPath)
	}

	execPath := DefaultExecutable
	if bin := strings.TrimSpace(opts.BinPath); bin != "" && isFile(fs, bin) {
		execPath = bin
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = config.DefaultLlamaThreads
	}

	launcher := opts.Launcher
	if launcher == nil {
		launcher = ExecLauncher{}
	}

	return &Backend{
		execPath:  execPath,
		modelPath: modelPath,
		threads:   threads,
		launcher:  launcher,
	}, nil
}

func (b *Backend) Name() string {
	return Name
}

// ExecPath returns the executable the backend launches.
func (b *Backend) ExecPath() string {
	return b.execPath
}

func (b *Backend) Generate(ctx context.Context, prompt string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	args := b.args(prompt)
	log.Debug().Str("exec", b.execPath).Str("model", b.modelPath).Int("threads", b.threads).Msg("launching local inference")

	result, err := b.launcher.Launch(ctx, b.execPath, args)
	if err != nil {
		return "", &backend.Error{Backend: Name, Err: fmt.Errorf("start %s: %w", b.execPath, err)}
	}
	if result.ExitCode != 0 {
		log.Debug().Int("exit_code", result.ExitCode).Int("output_bytes", len(result.Output)).Msg("local inference failed")
		return "", &backend.Error{Backend: Name, ExitCode: result.ExitCode, Err: ctx.Err()}
	}

	return joinLines(result.Output), nil
}

func (b *Backend) args(prompt string) []string {
	return []string{
		"-m", b.modelPath,
		"-p", prompt,
		"--threads", strconv.Itoa(b.threads),
		"--single-turn",
		"--log-disable",
		"--no-display-prompt",
	}
}

// joinLines splits output into lines on \n, \r\n or \r and joins them
// with \n. Only the terminator of the final line is lost.
func joinLines(output string) string {
	if output == "" {
		return ""
	}
	normalized := strings.ReplaceAll(output, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.TrimSuffix(normalized, "\n")
}

func isFile(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && !info.IsDir()
}
