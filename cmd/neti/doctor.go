package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"neti/internal/codec"
	"neti/internal/config"
	"neti/internal/preflight"
)

func newDoctorCmd(root *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check which scans this host can run",
		Long: `Check which scans this host can run: the probe and nmap binaries,
raw socket access for privileged nmap profiles, and container detection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			cfg, log, err := root.load(true)
			if err != nil {
				return err
			}
			defer log.Close()

			report := newPreflight(cfg, log).Run(cmd.Context())
			if output != outputText {
				exporter, err := codec.ForFormat(output)
				if err != nil {
					return err
				}
				return exporter.Export(report, cmd.OutOrStdout())
			}
			return printPreflight(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format (text, json, yaml)")
	return cmd
}

func newPreflight(cfg *config.Config, log logrus.FieldLogger) *preflight.Checker {
	return preflight.New(preflight.Binaries{
		Ping:       cfg.Probes.PingBinary,
		Traceroute: cfg.Probes.TracerouteBinary,
		Nslookup:   cfg.Probes.NslookupBinary,
		Nmap:       cfg.Nmap.BinaryPath,
	}, log)
}

func printPreflight(w io.Writer, report *preflight.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tVALUE\tHOW")
	for _, f := range report.Findings {
		fmt.Fprintf(tw, "%s\t%v\t%s\n", f.Property, f.Value, f.Method)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(report.Warnings) == 0 {
		_, err := fmt.Fprintln(w, "\nAll scan types available.")
		return err
	}
	fmt.Fprintln(w, "\nWarnings:")
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  - %s\n", warning)
	}
	return nil
}
