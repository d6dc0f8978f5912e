package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/pkg/craft"
)

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List registered protocols and their identifiers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProtocols(craft.DefaultRegistry(), cmd.OutOrStdout())
	},
}

func runProtocols(reg *craft.Registry, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROTOCOL\tID\tHEADER")
	for _, name := range reg.Names() {
		id, _ := reg.ProtoID(name)
		header := "-"
		if l, err := reg.New(name); err == nil {
			header = fmt.Sprintf("%d bytes", l.HeaderSize())
		}
		fmt.Fprintf(w, "%s\t0x%04x\t%s\n", name, id, header)
	}
	return w.Flush()
}
