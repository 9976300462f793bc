package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/openkaraoke/studio/config"
	"github.com/openkaraoke/studio/errors"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit configuration",
	Long: `Display and manage Open Karaoke Studio configuration.

Configuration sources (in order of precedence):
1. Environment variables (KARAOKE_* prefix)
2. Project config (./karaoke.toml, searched upward)
3. User config (~/.openkaraoke/karaoke.toml)
4. System config (/etc/openkaraoke/karaoke.toml)
5. Default values

Examples:
  karaoke config show                      # Show effective configuration
  karaoke config show --format json        # Show configuration as JSON
  karaoke config set worker.pool_size 2    # Persist a value to the user config
  karaoke config where                     # Show the configuration cascade`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective configuration merged from all sources",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value using dot notation and persist it to the
user config file (~/.openkaraoke/karaoke.toml).

Examples:
  karaoke config set worker.pool_size 2
  karaoke config set library.path /srv/karaoke/library`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	RunE:  runConfigWhere,
}

var configFormat string

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configSetCmd)
	ConfigCmd.AddCommand(configWhereCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Println(string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Printf("# Open Karaoke Studio configuration\n%s", string(data))

	default:
		return errors.Newf("unsupported format: %s (supported: toml, json)", configFormat)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	userConfig := config.UserConfigPath()
	if userConfig == "" {
		return errors.New("cannot resolve user config path")
	}

	if err := config.SetValue(userConfig, key, coerceValue(value)); err != nil {
		return errors.Wrapf(err, "failed to set %s", key)
	}
	fmt.Printf("Set %s = %s in %s\n", key, value, userConfig)
	return nil
}

// coerceValue turns a CLI string into the most specific TOML type.
func coerceValue(raw string) interface{} {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func runConfigWhere(cmd *cobra.Command, args []string) error {
	paths := []struct {
		label string
		path  string
	}{
		{"System", "/etc/openkaraoke/karaoke.toml"},
		{"User", config.UserConfigPath()},
		{"Project", "karaoke.toml"},
	}

	fmt.Println("Configuration cascade (lowest to highest precedence):")
	for _, p := range paths {
		if p.path == "" {
			continue
		}
		status := "missing"
		if _, err := os.Stat(p.path); err == nil {
			status = "found"
		}
		fmt.Printf("  %-8s %-45s [%s]\n", p.label, p.path, status)
	}
	fmt.Println("  Env      KARAOKE_* variables override all files")
	return nil
}
