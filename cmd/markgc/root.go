package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/markgc/internal/logger"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	configPath string
	logLevel   string
	logJSON    bool

	// Loaded in PersistentPreRunE
	cfg *Config

	// Numbers in human output get thousands separators.
	numbers = message.NewPrinter(language.English)
)

var rootCmd = &cobra.Command{
	Use:   "markgc",
	Short: "Exercise a conservative mark-and-sweep collector",
	Long: `markgc drives a conservative mark-and-sweep collector over off-heap
memory. It can replay small demonstration scenarios, stress the collector with
random object graphs checked against a reachability oracle, and report
collector and heap statistics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(logger.Options{
			Enabled: logLevel != "",
			JSON:    logJSON,
			Level:   logger.ParseLevel(logLevel),
		})

		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "YAML config file (heap, stack and stress settings)")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Enable structured logging at this level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write structured logs as JSON")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprint(os.Stdout, numbers.Sprintf(format, args...))
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprint(os.Stdout, numbers.Sprintf(format, args...))
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
