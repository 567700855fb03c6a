package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/quotestream/quotestream/client/internal/stats"
)

func statsCmd() *cobra.Command {
	var metricsURL string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the server's connection and broadcast counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := stats.New(metricsURL, nil).Read(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "  Connections:          %.0f\n", st.Connections)
			fmt.Fprintf(out, "  Subscribers:          %.0f\n", st.Subscribers)
			fmt.Fprintf(out, "  Broadcast ticks:      %.0f\n", st.Ticks)
			fmt.Fprintf(out, "  Quotes sent:          %.0f\n", st.QuotesSent)
			fmt.Fprintf(out, "  Protocol violations:  %.0f\n", st.ProtocolViolations)
			fmt.Fprintf(out, "  Unknown unsubscribes: %.0f\n", st.UnsubscribeNotFound)
			printBreakdown(cmd, "Send failures", st.SendFailures)
			printBreakdown(cmd, "Decode errors", st.DecodeErrors)
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsURL, "metrics-url", "http://localhost:8080/metrics", "server Prometheus endpoint")

	return cmd
}

func printBreakdown(cmd *cobra.Command, title string, m map[string]float64) {
	out := cmd.OutOrStdout()
	if len(m) == 0 {
		fmt.Fprintf(out, "  %s: none\n", title)
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(out, "  %s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "    %-12s %.0f\n", k, m[k])
	}
}
