package cmd

import (
	"github.com/deploymenttheory/frostbite-extract/internal/config"
	"github.com/deploymenttheory/frostbite-extract/internal/obslog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base CLI command.
var rootCmd = &cobra.Command{
	Use:   "frostbite-extract",
	Short: "Extract game assets from a Frostbite-dialect container tree",
	Long: `frostbite-extract reads a directory tree of TOC/superbundle/CAS
container files (a Data layer and an optional Patch overlay), resolves
the installation-package and bundle graph they describe, and writes
the decompressed EBX, RES, CHUNK, and TOC-resource parts it finds to a
plain filesystem tree.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// If config file was explicitly specified via flag, reinitialize.
		if cmd.Flags().Changed("config") && cfgFile != "" {
			// Only log an error, don't exit — the config may still be usable.
			if err := config.Initialize(cfgFile); err != nil {
				obslog.LogError("error loading config file", err, map[string]interface{}{
					"config_file": cfgFile,
				})
			}
		}

		// CLI flags can override config settings.
		if cmd.Flags().Changed("debug") {
			config.Instance.Debug, _ = cmd.Flags().GetBool("debug")
		}
		if v := cmd.Flags().Changed("log-format"); v {
			config.Instance.LogFormat, _ = cmd.Flags().GetString("log-format")
		}
		if v := cmd.Flags().Changed("log-file"); v {
			config.Instance.LogFile, _ = cmd.Flags().GetString("log-file")
		}
		if v := cmd.Flags().Changed("data-dir"); v {
			config.Instance.DataDir, _ = cmd.Flags().GetString("data-dir")
		}
		if v := cmd.Flags().Changed("patch-dir"); v {
			config.Instance.PatchDir, _ = cmd.Flags().GetString("patch-dir")
		}
		if v := cmd.Flags().Changed("output-dir"); v {
			config.Instance.OutputDir, _ = cmd.Flags().GetString("output-dir")
		}
		if v := cmd.Flags().Changed("workers"); v {
			config.Instance.Workers, _ = cmd.Flags().GetInt("workers")
		}
		if v := cmd.Flags().Changed("cache-file"); v {
			config.Instance.CacheFile, _ = cmd.Flags().GetString("cache-file")
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		obslog.LogError("command execution failed", err, nil)
		// Let Cobra handle the exit.
	}
}

func init() {
	// Config file flag.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in standard locations)")

	// Debug flag.
	rootCmd.PersistentFlags().Bool("debug", config.Instance.Debug, "enable debug logging")

	// Log flags.
	rootCmd.PersistentFlags().String("log-format", config.Instance.LogFormat, "log format: json or human")
	rootCmd.PersistentFlags().String("log-file", config.Instance.LogFile, "optional path to also write logs to")

	// Layout roots and output.
	rootCmd.PersistentFlags().String("data-dir", config.Instance.DataDir, "root of the Data layer")
	rootCmd.PersistentFlags().String("patch-dir", config.Instance.PatchDir, "root of the Patch layer (optional)")
	rootCmd.PersistentFlags().String("output-dir", config.Instance.OutputDir, "directory extracted parts are written to")

	// Extraction settings.
	rootCmd.PersistentFlags().Int("workers", config.Instance.Workers, "extraction worker pool width")
	rootCmd.PersistentFlags().String("cache-file", config.Instance.CacheFile, "optional path to the resolved-graph cache")

	// Bind flags to viper settings.
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("patch_dir", rootCmd.PersistentFlags().Lookup("patch-dir"))
	viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	viper.BindPFlag("cache_file", rootCmd.PersistentFlags().Lookup("cache-file"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(inspectCmd)
}
