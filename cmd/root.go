// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/log"
	"firestige.xyz/pktcraft/pkg/craft"
	"firestige.xyz/pktcraft/pkg/layers"
)

var (
	// Global flags
	configFile string

	cfg          *config.GlobalConfig
	registerOnce sync.Once
	registerErr  error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pktcraft",
	Short: "pktcraft - byte-precise packet crafting",
	Long: `pktcraft builds IPv4 packets from a stack of layers (IP, TCP, UDP, ICMP, raw payload)
described in a YAML or TOML template. Lengths, protocol numbers and checksums are derived
at craft time unless the template sets them explicitly.

Finished packets go to a backend:
  - hexdump: annotated hex dump on stdout
  - pcap:    appended to a capture file (raw IP link type)
  - raw:     written to a raw IPv4 socket (needs CAP_NET_RAW)`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return log.Close()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults only when empty)")

	rootCmd.AddCommand(craftCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(protocolsCmd)
	rootCmd.AddCommand(fieldsCmd)
}

// setup loads configuration, installs the logger and registers the built-in
// protocols on the default registry.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := log.Init(loaded.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	cfg = loaded
	return registerProtocols()
}

func registerProtocols() error {
	registerOnce.Do(func() {
		registerErr = layers.Register(craft.DefaultRegistry())
	})
	return registerErr
}

