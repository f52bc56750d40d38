package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/goosewin/codeagent/internal/scaffold"
)

var scaffoldFs = afero.NewOsFs()

var scaffoldCmd = &cobra.Command{
	Use:   "scaffold <language|auto> <filePath>",
	Short: "Create a new file from a language template",
	Args:  cobra.ExactArgs(2),
	RunE:  runScaffold,
}

func init() {
	rootCmd.AddCommand(scaffoldCmd)
}

func runScaffold(cmd *cobra.Command, args []string) error {
	language := strings.TrimSpace(args[0])
	path := args[1]

	if strings.EqualFold(language, "auto") {
		detected, ok := scaffold.DetectLanguage(path)
		if !ok {
			return fmt.Errorf("could not detect language for file: %s", path)
		}
		language = detected
	}

	if err := scaffold.Create(scaffoldFs, path, language); err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Created %s with %s template.\n", path, language)
	return nil
}
