package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goosewin/codeagent/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change codeagent settings",
	Long: `Settings are read from the default file, the global file
(~/.config/codeagent/config.yaml) and .codeagent.yaml in the current
directory, then from CODEAGENT_* variables. LLAMA_MODEL_PATH,
LLAMA_BIN_PATH and OPENAI_API_KEY override everything else.`,
	RunE: runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:       "get <key>",
	Short:     "Print the effective value of a setting",
	Args:      cobra.ExactArgs(1),
	ValidArgs: keyNames(),
	RunE:      runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting in the global config file",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List effective settings (secrets masked)",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Describe the settings codeagent reads",
	Args:  cobra.NoArgs,
	RunE:  runConfigKeys,
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd, configKeysCmd)
	rootCmd.AddCommand(configCmd)
}

func keyNames() []string {
	names := []string{}
	for _, key := range config.Keys() {
		names = append(names, key.Name)
	}
	return names
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key, ok := config.LookupKey(args[0])
	if !ok {
		return unknownKey(args[0])
	}

	value, found := config.GetConfig(key.Name)
	if !found || value == "" {
		return fmt.Errorf("%s is not set", key.Name)
	}
	if key.Secret {
		value = mask(value)
	}

	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if _, ok := config.LookupKey(args[0]); !ok {
		return unknownKey(args[0])
	}

	value := strings.TrimSpace(args[1])
	if value == "" {
		return errors.New("config value is required")
	}

	if err := config.SetConfig(args[0], value); err != nil {
		return err
	}

	key, _ := config.LookupKey(args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", key.Name, config.GlobalConfigPath())
	return nil
}

func runConfigList(cmd *cobra.Command, args []string) error {
	items, err := config.ListConfig()
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, key := range config.Keys() {
		value, ok := items[key.Name]
		if !ok || value == "" {
			value = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\n", key.Name, value)
		delete(items, key.Name)
	}

	// Keys left over come from hand-edited files; codeagent ignores them.
	extra := make([]string, 0, len(items))
	for name := range items {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	for _, name := range extra {
		fmt.Fprintf(writer, "%s\t%s\t(ignored)\n", name, items[name])
	}

	return writer.Flush()
}

func runConfigKeys(cmd *cobra.Command, args []string) error {
	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(writer, "KEY\tTYPE\tDESCRIPTION")
	for _, key := range config.Keys() {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", key.Name, key.Kind, key.Description)
	}
	return writer.Flush()
}

func unknownKey(name string) error {
	return fmt.Errorf("%w: %s (see `codeagent config keys`)", config.ErrUnknownKey, name)
}

func mask(value string) string {
	if len(value) <= 4 {
		return "********"
	}
	return "********" + value[len(value)-4:]
}
