package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"neti/internal/codec"
	"neti/internal/domain"
	"neti/internal/service"
)

// outputText is the human-readable format; the others come from codec
const outputText = "text"

// envDevicePassword keeps the device password out of shell history
const envDevicePassword = "NETI_DEVICE_PASSWORD"

type scanOptions struct {
	root *rootOptions

	output     string
	bruteforce bool

	deviceType string
	username   string
	password   string
	analyze    bool
	apiKey     string
}

func newScanCmd(root *rootOptions) *cobra.Command {
	opts := &scanOptions{root: root}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan and print the result",
	}
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format (text, json, yaml)")

	for _, probe := range []domain.ScanType{domain.ScanTypePing, domain.ScanTypeTraceroute, domain.ScanTypeNslookup} {
		cmd.AddCommand(&cobra.Command{
			Use:   string(probe) + " <target>",
			Short: fmt.Sprintf("Run %s against a host", probe),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, domain.ScanRequest{
					Kind: domain.TargetKindNetwork, ScanType: probe, Target: args[0],
				})
			},
		})
	}

	var nmapType string
	nmapCmd := &cobra.Command{
		Use:   "nmap <target>",
		Short: "Run an nmap scan profile against a host",
		Long: `Run an nmap scan profile against a host.

Profiles: ping_scan, quick_scan, intense_scan, udp_scan, vuln_scan`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, domain.ScanRequest{
				Kind: domain.TargetKindNetwork, ScanType: domain.ScanType(nmapType), Target: args[0],
			})
		},
	}
	nmapCmd.Flags().StringVar(&nmapType, "type", string(domain.ScanTypeQuickScan), "scan profile")

	subdomainCmd := &cobra.Command{
		Use:   "subdomain <domain>",
		Short: "Enumerate subdomains of a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, domain.ScanRequest{
				Kind: domain.TargetKindDomain, ScanType: domain.ScanTypeSubdomainEnum, Target: args[0],
			})
		},
	}
	subdomainCmd.Flags().BoolVar(&opts.bruteforce, "bruteforce", false, "also resolve the built-in wordlist")

	deviceCmd := &cobra.Command{
		Use:   "device <host>",
		Short: "Retrieve the running configuration of a network device over SSH",
		Long: `Retrieve the running configuration of a network device over SSH.

The password is read from --password or $` + envDevicePassword + `.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := opts.password
			if password == "" {
				password = os.Getenv(envDevicePassword)
			}
			return opts.run(cmd, domain.ScanRequest{
				Kind:        domain.TargetKindDevice,
				ScanType:    domain.ScanTypeDeviceConfig,
				Target:      args[0],
				DeviceType:  domain.DeviceType(opts.deviceType),
				Credentials: &domain.Credentials{Username: opts.username, Password: password},
			})
		},
	}
	deviceFlags := deviceCmd.Flags()
	deviceFlags.StringVar(&opts.deviceType, "device-type", "", "device dialect (mikrotik, cisco_ios)")
	deviceFlags.StringVarP(&opts.username, "username", "u", "", "SSH username")
	deviceFlags.StringVarP(&opts.password, "password", "p", "", "SSH password")
	deviceFlags.BoolVar(&opts.analyze, "analyze", false, "send the configuration for AI analysis")
	deviceFlags.StringVar(&opts.apiKey, "api-key", "", "analysis API key (default: from the configured environment variable)")
	_ = deviceCmd.MarkFlagRequired("device-type")
	_ = deviceCmd.MarkFlagRequired("username")

	emailCmd := &cobra.Command{
		Use:   "email <address>",
		Short: "Check the MX, SPF and DMARC records behind an email address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, domain.ScanRequest{
				Kind: domain.TargetKindEmail, ScanType: domain.ScanTypeEmailAnalysis, Target: args[0],
			})
		},
	}

	cmd.AddCommand(nmapCmd, subdomainCmd, deviceCmd, emailCmd)
	return cmd
}

func (o *scanOptions) run(cmd *cobra.Command, req domain.ScanRequest) error {
	if err := checkOutput(o.output); err != nil {
		return err
	}

	cfg, log, err := o.root.load(true)
	if err != nil {
		return err
	}
	defer log.Close()

	st, err := buildStack(cfg, log, stackOptions{bruteforce: o.bruteforce})
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	outcome := st.scans.Scan(ctx, req)

	out := cmd.OutOrStdout()
	if err := printEnvelope(out, outcome.Result, o.output); err != nil {
		return err
	}

	if res, ok := outcome.Result.(domain.DeviceConfigResult); ok && o.analyze && !res.Failed() {
		return printAnalysis(ctx, out, st.scans, o.apiKey, res)
	}
	return nil
}

func printAnalysis(ctx context.Context, w io.Writer, scans *service.ScanService, apiKey string, res domain.DeviceConfigResult) error {
	analysis := scans.DeviceAnalysis(ctx, apiKey, res)
	_, err := fmt.Fprintf(w, "\n--- AI analysis ---\n%s\n", analysis)
	return err
}

// printEnvelope writes a result in the given output format. A failed
// result is returned as an error so the process exits non-zero.
func printEnvelope(w io.Writer, env domain.Envelope, output string) error {
	if output != outputText {
		exporter, err := codec.ForFormat(output)
		if err != nil {
			return err
		}
		if err := exporter.Export(env, w); err != nil {
			return err
		}
		if env.Failed() {
			return errors.New(env.ErrorMessage())
		}
		return nil
	}

	if env.Failed() {
		return errors.New(env.ErrorMessage())
	}

	var text string
	switch res := env.(type) {
	case domain.Output:
		text = res.Text()
		if res.Note != "" {
			text = strings.TrimRight(text, "\n") + "\n\nNote: " + res.Note
		}
	case domain.DomainScanResult:
		if len(res.Results) == 0 {
			text = "No subdomains found."
		} else {
			text = strings.Join(res.Results, "\n")
		}
	case domain.EmailAnalysisResult:
		text = strings.Join(res.Results, "\n")
	case domain.DeviceConfigResult:
		text = res.ConfigData
	default:
		data, err := json.MarshalIndent(env, "", "  ")
		if err != nil {
			return err
		}
		text = string(data)
	}

	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}

func checkOutput(output string) error {
	if output == outputText {
		return nil
	}
	_, err := codec.ForFormat(output)
	return err
}
