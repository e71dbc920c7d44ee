package cmd

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/connectr/internal/config"
	"github.com/jmylchreest/connectr/internal/observability"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing connectr configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the configuration in YAML format.

By default this is the effective configuration after the config file and
environment have been applied, with secrets masked. Use --defaults to print
the built-in defaults as a template:

  connectr config dump --defaults > config.yaml

Environment variables use the CONNECTR_ prefix and underscores for nesting.
Example: service.login_type -> CONNECTR_SERVICE_LOGIN_TYPE`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
	configDumpCmd.Flags().Bool("defaults", false, "print built-in defaults instead of the effective configuration")
}

// secretKeys are masked in dumps of the effective configuration.
var secretKeys = map[string]bool{
	"checksum_secret": true,
	"dsn":             true,
}

// toMap converts a config struct to a map keyed by mapstructure tags,
// formatting durations for humans.
func toMap(v any, mask bool) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		key := typ.Field(i).Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(typ.Field(i).Name)
		}

		switch fv := field.Interface().(type) {
		case time.Duration:
			result[key] = fv.String()
		case string:
			if mask && secretKeys[key] && fv != "" {
				result[key] = observability.Redacted
			} else {
				result[key] = fv
			}
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(fv, mask)
			} else {
				result[key] = fv
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, _ []string) error {
	defaults, _ := cmd.Flags().GetBool("defaults")

	v := viper.GetViper()
	if defaults {
		v = viper.New()
		config.SetDefaults(v)
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}

	yamlData, err := yaml.Marshal(toMap(&cfg, !defaults))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "# connectr configuration")
	fmt.Fprintln(out, "#")
	fmt.Fprintln(out, "# service.settings_url, service.version_url and service.checksum_secret")
	fmt.Fprintln(out, "# have no defaults and must be set before contacting the platform.")
	fmt.Fprintln(out, "# Duration format: 30s, 10m, 1h")
	fmt.Fprintln(out)
	_, err = out.Write(yamlData)
	return err
}
