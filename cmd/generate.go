package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goosewin/codeagent/internal/config"
	"github.com/goosewin/codeagent/internal/generate"
)

var generateBackend string

var generateCmd = &cobra.Command{
	Use:   "generate <filePath> <prompt...>",
	Short: "Generate code via a language model into a file",
	Args:  generateArgs,
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateBackend, "backend", "b", "", "Backend to use (auto, llama, openai)")
	rootCmd.AddCommand(generateCmd)
}

func generateArgs(cmd *cobra.Command, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s", cmd.UseLine())
	}
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	settings := config.Resolve()
	if cmd.Flags().Changed("backend") {
		settings.Backend = strings.TrimSpace(generateBackend)
	}

	orchestrator := generate.New(settings, generate.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))

	prompt := strings.Join(args[1:], " ")
	if err := orchestrator.Run(cmd.Context(), args[0], prompt); err != nil {
		return reportedError{err: err}
	}
	return nil
}
