package cli

import (
	"bufio"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/docsmith/pkg/errors"
)

// keyCommand groups the API key subcommands.
func (c *CLI) keyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage generation provider API keys",
		Long: `Store and remove the API keys used to repair diagrams.

Keys are stored per provider under apiKey_<provider>. The file store
writes them with mode 0600.`,
	}

	cmd.AddCommand(c.keySetCommand())
	cmd.AddCommand(c.keyDeleteCommand())

	return cmd
}

func (c *CLI) keySetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider> [key]",
		Short: "Store the API key for a provider",
		Long: `Store the API key for a provider.

Without a key argument the key is read from the first line of stdin, which
keeps it out of shell history.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			provider := args[0]
			if err := errors.ValidateProvider(provider); err != nil {
				return err
			}

			var key string
			if len(args) == 2 {
				key = args[1]
			} else {
				line, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				key = line
			}

			s, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.docs.SetCredential(ctx, provider, key); err != nil {
				return err
			}
			printSuccess("Stored API key for %s", provider)
			return nil
		},
	}
}

func (c *CLI) keyDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove the API key for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.docs.DeleteCredential(ctx, args[0]); err != nil {
				return err
			}
			printSuccess("Removed API key for %s", args[0])
			return nil
		},
	}
}

// readLine returns the first line of r, trimmed.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read key")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "API key cannot be empty")
	}
	return line, nil
}
