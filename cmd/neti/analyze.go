package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var file, apiKey string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Generate a written report from scan results",
		Long: `Generate a written report from scan results with the configured model.

Results are read from --file, or from stdin when --file is "-" or omitted.
The API key comes from --api-key or the configured environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := readResults(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			cfg, log, err := root.load(true)
			if err != nil {
				return err
			}
			defer log.Close()

			st, err := buildStack(cfg, log, stackOptions{})
			if err != nil {
				return err
			}
			defer st.Close()

			res := st.scans.Analyze(cmd.Context(), apiKey, results)
			if res.Failed() {
				return errors.New(res.Message)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Analysis)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file holding the scan results")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "analysis API key")
	return cmd
}

func readResults(stdin io.Reader, file string) (string, error) {
	var (
		data []byte
		err  error
	)
	if file == "" || file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read results: %w", err)
	}
	return string(data), nil
}
