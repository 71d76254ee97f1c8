package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/OCAP2/mediatrack/internal/vocab"
)

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List trackable events and event groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "EVENT\tTYPE\tSOURCE")
			for _, name := range vocab.Names {
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, name.Type(), source(name))
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "GROUP\tMEMBERS")
			for _, g := range vocab.GroupNames {
				members, _ := vocab.LookupGroup(g)
				names := make([]string, len(members))
				for i, m := range members {
					names[i] = string(m)
				}
				fmt.Fprintf(w, "%s\t%s\n", g, strings.Join(names, ","))
			}
			return w.Flush()
		},
	}
}

func source(name vocab.EventName) string {
	switch {
	case name.IsStateEvent():
		return "state"
	case name == vocab.Seek || name == vocab.VolumeChange || name == vocab.PercentProgress:
		return "derived"
	default:
		return "callback"
	}
}
