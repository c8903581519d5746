package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/config/file"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// secretKeys are never echoed and are read without echo when no value is given.
var secretKeys = map[string]bool{
	"middle_store.secret_key": true,
	"middle_store.access_key": true,
	"websocket.token":         true,
}

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `View and edit config.toml. Keys are dotted paths into the file, for
example sync.priority or middle_store.bucket.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Set a configuration value",
	Long: `Sets a configuration value. Numbers and booleans are stored typed.
Secrets (middle_store.secret_key, middle_store.access_key, websocket.token)
are prompted for without echo when the value is omitted.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configInitCmd, configGetCmd, configSetCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}
	cfg, err := file.Load(path)
	if err != nil {
		return err
	}

	masked := *cfg
	masked.MiddleStore.SecretKey = maskSecret(masked.MiddleStore.SecretKey)
	masked.MiddleStore.AccessKey = maskSecret(masked.MiddleStore.AccessKey)
	masked.Websocket.Token = maskSecret(masked.Websocket.Token)

	data, err := toml.Marshal(&masked)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	cmd.Printf("# %s\n", path)
	cmd.Print(string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := file.Default().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	cmd.Printf("Wrote %s\n", path)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	store, err := openConfigStore()
	if err != nil {
		return err
	}
	key := args[0]
	value, ok := store.Get(key)
	if !ok {
		return fmt.Errorf("%s is not set", key)
	}
	if secretKeys[key] {
		cmd.Println(maskSecret(fmt.Sprint(value)))
		return nil
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	var raw string
	switch {
	case len(args) == 2:
		raw = args[1]
	case secretKeys[key]:
		secret, err := readSecret(cmd, key)
		if err != nil {
			return err
		}
		raw = secret
	default:
		return fmt.Errorf("a value is required for %s", key)
	}

	store, err := openConfigStore()
	if err != nil {
		return err
	}

	var value any = raw
	if !secretKeys[key] {
		value = file.ParseValue(raw)
	}
	if err := store.Set(key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	appConfig = nil

	if cfg, err := file.Load(store.Path()); err == nil {
		if err := cfg.Validate(); err != nil {
			cmd.Printf("Warning: %v\n", err)
		}
	}
	cmd.Printf("%s updated.\n", key)
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}
	cfg, err := file.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	cmd.Println("Configuration is valid.")
	return nil
}

func openConfigStore() (driven.ConfigStore, error) {
	path, err := resolvedConfigPath()
	if err != nil {
		return nil, err
	}
	store, err := file.OpenConfigStore(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// readSecret reads a value without echo from an interactive terminal.
func readSecret(cmd *cobra.Command, key string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("a value is required for %s when stdin is not a terminal", key)
	}
	cmd.Printf("%s: ", key)
	secret, err := term.ReadPassword(fd)
	cmd.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	value := strings.TrimSpace(string(secret))
	if value == "" {
		return "", errors.New("empty value")
	}
	return value, nil
}

// maskSecret keeps the last four characters of a secret.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
