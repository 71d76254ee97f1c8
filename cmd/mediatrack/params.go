package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OCAP2/mediatrack/internal/params"
)

func newParamsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "params <url>",
		Short: "Print the query parameters extracted from a player URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps := params.Extract(args[0])
			out := cmd.OutOrStdout()

			if asJSON {
				m := make(map[string]any, len(ps))
				for k, p := range ps {
					if p.IsList() {
						m[k] = p.Strings()
					} else {
						m[k] = p.String()
					}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(m)
			}

			keys := make([]string, 0, len(ps))
			for k := range ps {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				p := ps[k]
				if p.IsList() {
					fmt.Fprintf(out, "%s=[%s]\n", k, strings.Join(p.Strings(), ","))
					continue
				}
				fmt.Fprintf(out, "%s=%s\n", k, p.String())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
