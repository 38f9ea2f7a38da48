package main

import (
	"flag"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var cfg Config

var rootCmd = &cobra.Command{
	Use:   "ccbufferd",
	Short: "ccbufferd runs an inter-datacenter transaction buffering and compaction node",
	Long: `ccbufferd buffers committed transactions per partition, compacts
redundant CCRDT updates on a timer, and broadcasts the result to peer
datacenters.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cfg)
	},
}

func init() {
	if path := preScanConfigFile(os.Args[1:]); path != "" {
		exitOnError(cfg.LoadFromFile(path))
	}

	fs := flag.NewFlagSet("ccbufferd", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	rootCmd.Flags().AddGoFlagSet(fs)
}

// preScanConfigFile finds a -config.file (or --config.file) value among
// args without fully parsing them, so the YAML file it names can be
// loaded before RegisterFlags establishes flag defaults from cfg.
func preScanConfigFile(args []string) string {
	const flagName = "config.file"
	for i, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue // not a flag
		}
		if name == flagName && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(name, flagName+"=") {
			return strings.TrimPrefix(name, flagName+"=")
		}
	}
	return ""
}

// Execute runs the root command.
func Execute() {
	exitOnError(rootCmd.Execute())
}
