package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/pktcraft/pkg/craft"
)

var fieldsCmd = &cobra.Command{
	Use:     "fields <protocol>",
	Short:   "Show the header layout of a protocol",
	Example: "  pktcraft fields TCP",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFields(craft.DefaultRegistry(), args[0], cmd.OutOrStdout())
	},
}

// runFields prints every field of a default-constructed layer with its
// position and default value.
func runFields(reg *craft.Registry, name string, out io.Writer) error {
	l, err := reg.New(name)
	if err != nil {
		return err
	}
	base := l.Generic()
	words := base.Words()

	fmt.Fprintf(out, "%s: %d words, %d header bytes\n", l.Name(), len(words), l.HeaderSize())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tKIND\tWORD\tBITS\tDEFAULT")
	for _, f := range base.Fields().Fields() {
		name := f.Name()
		if parts := f.Parts(); parts != nil {
			name += " (" + strings.Join(parts, ", ") + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d-%d\t%s\n", name, f.Kind(), f.Word(), f.Low(), f.High(), f.Format(words))
	}
	return w.Flush()
}
