package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/internal/backend"
	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/log"
	"firestige.xyz/pktcraft/internal/template"
	"firestige.xyz/pktcraft/pkg/craft"
)

// packetFlags are the flags shared by craft and send.
type packetFlags struct {
	template string
	backend  string
	pcapFile string
	decode   bool
	verbose  bool
}

var craftFlags packetFlags

var craftCmd = &cobra.Command{
	Use:   "craft",
	Short: "Craft one packet from a template",
	Long: `Craft one packet from a YAML or TOML template and hand it to a backend.

Without --backend the packet is printed as a hex dump.`,
	Example: `  pktcraft craft -t templates/syn.yaml -v
  pktcraft craft -t templates/ping.toml --backend pcap --pcap-file ping.pcap`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := loadStack(craftFlags.template)
		if err != nil {
			return err
		}
		sender, err := openBackend(craftFlags, backend.NameHexdump, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeSender(sender)

		_, err = runSend(cmd.Context(), stack, sender, sendOptions{count: 1, verbose: craftFlags.verbose}, cmd.OutOrStdout())
		return err
	},
}

func init() {
	addPacketFlags(craftCmd, &craftFlags)
}

func addPacketFlags(cmd *cobra.Command, f *packetFlags) {
	cmd.Flags().StringVarP(&f.template, "template", "t", "", "packet template (.yaml, .yml or .toml)")
	cmd.Flags().StringVar(&f.backend, "backend", "", "backend: hexdump, pcap or raw")
	cmd.Flags().StringVar(&f.pcapFile, "pcap-file", "", "capture file for the pcap backend")
	cmd.Flags().BoolVar(&f.decode, "decode", false, "append a decoded view to hex dumps")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print the crafted layers")
	_ = cmd.MarkFlagRequired("template")
}

// loadStack reads a template and builds its stack on the default registry.
func loadStack(path string) (*craft.Stack, error) {
	spec, err := template.LoadFile(path)
	if err != nil {
		return nil, err
	}
	showWarnings := true
	if cfg != nil {
		showWarnings = cfg.Craft.ShowWarnings
	}
	stack, err := spec.Build(craft.DefaultRegistry(), craft.WithLogger(log.Logrus()), craft.WithWarnings(showWarnings))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return stack, nil
}

// backendConfig merges the command flags over the configured backend.
// fallback replaces the configured type when --backend is not given.
func backendConfig(base config.BackendConfig, f packetFlags, fallback string) config.BackendConfig {
	bc := base
	switch {
	case f.backend != "":
		bc.Type = f.backend
	case fallback != "":
		bc.Type = fallback
	}
	if f.pcapFile != "" {
		bc.Pcap.Path = f.pcapFile
	}
	if f.decode {
		bc.Hexdump.Decode = true
	}
	return bc
}

func openBackend(f packetFlags, fallback string, out io.Writer) (backend.Sender, error) {
	var base config.BackendConfig
	if cfg != nil {
		base = cfg.Backend
	} else {
		base = config.Default().Backend
	}
	bc := backendConfig(base, f, fallback)

	sender, err := backend.New(bc, out)
	if err != nil {
		return nil, err
	}
	log.GetLogger().WithField("backend", sender.Name()).Debug("backend opened")
	return backend.WithMetrics(sender), nil
}

func closeSender(sender backend.Sender) {
	if err := sender.Close(); err != nil {
		log.GetLogger().WithError(err).WithField("backend", sender.Name()).Warn("failed to close backend")
	}
}
