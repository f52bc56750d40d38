package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/goosewin/codeagent/internal/backend"
	_ "github.com/goosewin/codeagent/internal/backend/llama"
	_ "github.com/goosewin/codeagent/internal/backend/openai"
	"github.com/goosewin/codeagent/internal/config"
	"github.com/goosewin/codeagent/internal/progress"
)

type State int

const (
	Unconfigured State = iota
	BackendSelected
	Invoking
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case BackendSelected:
		return "backend_selected"
	case Invoking:
		return "invoking"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Indicator is shown while a backend call blocks. Stop must not return
// until the indicator has finished writing.
type Indicator interface {
	Start(ctx context.Context)
	Stop()
}

// IndicatorFactory builds a fresh indicator for each run.
type IndicatorFactory func(out io.Writer) Indicator

// Selector picks the backend once, when the orchestrator is built.
type Selector func(settings config.Settings) (backend.Backend, error)

// Orchestrator runs one generation at a time against the backend chosen
// at construction.
type Orchestrator struct {
	backend   backend.Backend
	selectErr error
	state     State

	fs           afero.Fs
	out          io.Writer
	errOut       io.Writer
	newIndicator IndicatorFactory
	settleDelay  time.Duration
}

type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	fs           afero.Fs
	out          io.Writer
	errOut       io.Writer
	newIndicator IndicatorFactory
	selector     Selector
	settleDelay  *time.Duration
}

func WithFs(fs afero.Fs) Option {
	return func(o *orchestratorOptions) { o.fs = fs }
}

// WithOutput sets where progress and success lines go (out) and where the
// failure line goes (errOut).
func WithOutput(out, errOut io.Writer) Option {
	return func(o *orchestratorOptions) {
		o.out = out
		o.errOut = errOut
	}
}

func WithIndicator(factory IndicatorFactory) Option {
	return func(o *orchestratorOptions) { o.newIndicator = factory }
}

func WithSelector(selector Selector) Option {
	return func(o *orchestratorOptions) { o.selector = selector }
}

// WithSettleDelay overrides the pause between stopping the indicator and
// printing the outcome.
func WithSettleDelay(delay time.Duration) Option {
	return func(o *orchestratorOptions) { o.settleDelay = &delay }
}

// New selects a backend from settings. Selection sees the orchestrator's
// filesystem unless settings already carry one. A failed selection is kept and
// returned by every Run; it is not retried.
func New(settings config.Settings, opts ...Option) *Orchestrator {
	options := orchestratorOptions{
		fs:       afero.NewOsFs(),
		out:      os.Stdout,
		errOut:   os.Stderr,
		selector: backend.Select,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.newIndicator == nil {
		interval := settings.ProgressInterval
		options.newIndicator = func(out io.Writer) Indicator {
			return progress.New(out, progress.WithInterval(interval))
		}
	}
	settle := settings.SettleDelay
	if options.settleDelay != nil {
		settle = *options.settleDelay
	}

	o := &Orchestrator{
		state:        Unconfigured,
		fs:           options.fs,
		out:          options.out,
		errOut:       options.errOut,
		newIndicator: options.newIndicator,
		settleDelay:  settle,
	}

	if settings.Fs == nil {
		settings.Fs = options.fs
	}
	selected, err := options.selector(settings)
	switch {
	case err != nil:
		o.selectErr = err
		log.Debug().Err(err).Str("requested", settings.Backend).Msg("no backend selected")
	case selected == nil:
		o.selectErr = fmt.Errorf("%w: selector returned no backend", backend.ErrNotConfigured)
	default:
		o.backend = selected
		o.state = BackendSelected
		log.Debug().Str("backend", selected.Name()).Msg("backend selected")
	}

	return o
}

// Backend returns the selected backend, or nil when none is configured.
func (o *Orchestrator) Backend() backend.Backend {
	return o.backend
}

func (o *Orchestrator) State() State {
	return o.state
}

// Run generates code for prompt and overwrites path with the result. On
// any failure a single error line is printed to errOut, the error is
// returned and path is left untouched.
func (o *Orchestrator) Run(ctx context.Context, path, prompt string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.backend == nil {
		err := o.selectErr
		if err == nil {
			err = backend.ErrNotConfigured
		}
		o.report(err)
		return err
	}

	logger := log.With().Str("run_id", uuid.NewString()).Str("backend", o.backend.Name()).Logger()
	o.state = Invoking
	logger.Debug().Str("target", path).Int("prompt_bytes", len(prompt)).Msg("generation started")

	started := time.Now()
	indicator := o.newIndicator(o.out)
	indicator.Start(ctx)
	text, err := o.backend.Generate(ctx, prompt)
	indicator.Stop()
	o.settle(ctx)

	if err != nil {
		o.state = Failed
		logger.Debug().Err(err).Dur("elapsed", time.Since(started)).Msg("generation failed")
		o.report(err)
		return err
	}
	logger.Debug().Int("output_bytes", len(text)).Dur("elapsed", time.Since(started)).Msg("generation finished")

	fmt.Fprintf(o.out, "Writing to the file %s\n", path)
	if err := WriteResult(o.fs, path, text); err != nil {
		o.state = Failed
		writeErr := &WriteError{Path: path, Err: err}
		o.report(writeErr)
		return writeErr
	}

	o.state = Completed
	color.New(color.FgGreen).Fprintf(o.out, "Generated code written to %s\n", path)
	return nil
}

func (o *Orchestrator) settle(ctx context.Context) {
	if o.settleDelay <= 0 {
		return
	}
	timer := time.NewTimer(o.settleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) report(err error) {
	if errors.Is(err, backend.ErrNotConfigured) {
		color.New(color.FgRed).Fprintf(o.errOut, "LLM client not configured: %v\n", err)
		return
	}
	color.New(color.FgRed).Fprintf(o.errOut, "Error during code generation: %v\n", err)
}
