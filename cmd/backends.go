package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goosewin/codeagent/internal/backend"
	_ "github.com/goosewin/codeagent/internal/backend/llama"
	_ "github.com/goosewin/codeagent/internal/backend/openai"
	"github.com/goosewin/codeagent/internal/config"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List available code-generation backends",
	Args:  cobra.NoArgs,
	RunE:  runBackends,
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}

func runBackends(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	names := backend.Names()
	if len(names) == 0 {
		fmt.Fprintln(out, "No backends registered")
		return nil
	}

	settings := config.Resolve()
	selectedName := ""
	if selected, err := backend.Select(settings); err == nil {
		selectedName = selected.Name()
	}

	writer := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tCONFIGURED\tSELECTED")
	fmt.Fprintln(writer, "----\t----------\t--------")

	for _, name := range names {
		configured := "no"
		if _, err := backend.New(name, settings); err == nil {
			configured = "yes"
		}
		selected := ""
		if name == selectedName {
			selected = "*"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", name, configured, selected)
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Usage: codeagent generate <filePath> <prompt...> --backend <name>")
	return nil
}
