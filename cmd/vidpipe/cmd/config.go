package cmd

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matchvision/vidpipe/internal/config"
	"github.com/matchvision/vidpipe/pkg/bytesize"
	"github.com/matchvision/vidpipe/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing vidpipe configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  vidpipe config dump > config.yaml

Configuration can be set via:
  - Config file (./configs/config.yaml, /etc/vidpipe/config.yaml, $HOME/.vidpipe/config.yaml)
  - Environment variables (VIDPIPE_SERVER_PORT, VIDPIPE_EVENTS_BROKERS, etc.)
  - Command-line flags (for some options)

Environment variables use the VIDPIPE_ prefix and underscores for nesting.
Example: server.port -> VIDPIPE_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map, formatting durations and sizes
// for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = duration.Format(v)
		case config.Duration:
			result[key] = duration.Format(v.Duration())
		case config.ByteSize:
			result[key] = bytesize.Format(bytesize.Size(v.Int64()))
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	yamlData, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Println("# vidpipe Configuration File")
	fmt.Println("# ===========================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("# Duration format: 30s, 5m, 1h, 7d, 2w")
	fmt.Println("# Size format: 512KB, 5MB, 1GB")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   VIDPIPE_SERVER_HOST, VIDPIPE_SERVER_PORT")
	fmt.Println("#   VIDPIPE_EVENTS_BACKEND, VIDPIPE_EVENTS_BROKERS")
	fmt.Println("#   VIDPIPE_CHECKPOINT_BACKEND, VIDPIPE_CHECKPOINT_REDIS_ADDR")
	fmt.Println("#   VIDPIPE_LOGGING_LEVEL, VIDPIPE_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
