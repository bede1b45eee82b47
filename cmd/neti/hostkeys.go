package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/knownhosts"

	"neti/internal/repository"
	"neti/internal/repository/sqlite"
)

func newHostKeysCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hostkeys",
		Short: "Manage SSH host keys pinned on first use",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List pinned host keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHostKeyStore(root, func(store repository.HostKeyRepository) error {
				keys, err := store.ListHostKeys(cmd.Context())
				if err != nil {
					return err
				}
				return printHostKeys(cmd.OutOrStdout(), keys)
			})
		},
	}

	forget := &cobra.Command{
		Use:   "forget <host[:port]>",
		Short: "Forget a pinned key so the next connection pins again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := knownhosts.Normalize(args[0])
			return withHostKeyStore(root, func(store repository.HostKeyRepository) error {
				err := store.DeleteHostKey(cmd.Context(), host)
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("no key pinned for %s", host)
				}
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Forgot host key for %s\n", host)
				return err
			})
		},
	}

	cmd.AddCommand(list, forget)
	return cmd
}

func withHostKeyStore(root *rootOptions, fn func(repository.HostKeyRepository) error) error {
	cfg, log, err := root.load(true)
	if err != nil {
		return err
	}
	defer log.Close()

	store, err := sqlite.New(cfg.Device.HostKeyDBPath)
	if err != nil {
		return fmt.Errorf("open host key store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func printHostKeys(w io.Writer, keys []repository.HostKey) error {
	if len(keys) == 0 {
		_, err := fmt.Fprintln(w, "No host keys pinned.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tTYPE\tFINGERPRINT\tFIRST SEEN\tLAST SEEN")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			k.Host, k.KeyType, k.Fingerprint,
			k.FirstSeen.Format(time.RFC3339), k.LastSeen.Format(time.RFC3339))
	}
	return tw.Flush()
}
