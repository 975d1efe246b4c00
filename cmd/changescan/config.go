package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/changescan/pkg/changescan/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage changescan configuration settings.

Configuration is loaded from $XDG_CONFIG_HOME/changescan/config.yaml
(typically ~/.config/changescan/config.yaml) or the file named by --config.

Environment variables override the file using the CHANGESCAN_ prefix:
  CHANGESCAN_MODE=content
  CHANGESCAN_WORKERS=8
  CHANGESCAN_CACHE_ENABLED=true`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), configPath())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.ConfigFile()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		if _, err := os.Stat(used); err == nil {
			fmt.Fprintf(out, "# config file: %s\n", used)
		}
	}

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		return err
	}

	var overrides []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, config.EnvPrefix+"_") {
			overrides = append(overrides, kv)
		}
	}
	if len(overrides) > 0 {
		sort.Strings(overrides)
		fmt.Fprintln(out, "# environment overrides:")
		for _, kv := range overrides {
			fmt.Fprintf(out, "#   %s\n", kv)
		}
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	written, err := config.WriteDefault(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if !written {
		printInfo("Config file already exists: %s", path)
		return nil
	}
	printInfo("Created default config file: %s", path)
	return nil
}
