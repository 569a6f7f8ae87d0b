package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orderhub/order-intake/internal/pipeline"
)

type parseOptions struct {
	message string
	from    string
	id      string
}

func newParseCmd(root *rootOptions) *cobra.Command {
	opts := &parseOptions{}
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Interpret one message and print the result as JSON",
		Long: `Interpret one message and print the result as JSON. The message is read
from --message or, when that is empty, from standard input. Nothing is saved
and red alerts are only logged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			cfg.Store.Sink = "none"
			cfg.Alert.Sink = "log"

			body := opts.message
			if body == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				body = string(data)
			}
			if strings.TrimSpace(body) == "" {
				return fmt.Errorf("no message: pass --message or pipe text on stdin")
			}

			a, err := root.build(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Pipeline.Process(cmd.Context(), pipeline.Message{ID: opts.id, From: opts.from, Body: body})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "message text; one order per line")
	cmd.Flags().StringVar(&opts.from, "from", "", "sender phone number used for the restaurant lookup")
	cmd.Flags().StringVar(&opts.id, "id", "", "message ID; generated when empty")
	return cmd
}
