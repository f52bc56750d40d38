package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/goosewin/codeagent/internal/config"
	"github.com/goosewin/codeagent/internal/logging"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "codeagent",
	Short: "Generate and scaffold source files with a language model",
	Long: `codeagent sends a natural-language prompt to a language model (a local
llama.cpp binary or a chat-completions API) and writes the returned code
to a file. It can also scaffold new files from language templates.`,
	Version:           Version,
	SilenceErrors:     true,
	SilenceUsage:      true,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: prepare,
	RunE:              runRoot,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// reportedError has already been shown to the user.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "codeagent: %s\n", err)
		}
		os.Exit(1)
	}
}

func prepare(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	if err := loadConfigForCwd(); err != nil {
		return err
	}
	settings := config.Resolve()
	logging.Setup(cmd.ErrOrStderr(), settings.LogLevel, verbose)
	return nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Unknown command: %s\n", args[0])
	}
	return cmd.Usage()
}

func loadConfigForCwd() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve current directory: %w", err)
	}
	_, err = config.LoadConfig(cwd)
	return err
}
