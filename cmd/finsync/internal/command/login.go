package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd(e *env) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save the access token issued by the backend",
		Long: `Save the access token issued by the backend for later runs.

Without --token the token is read from the terminal without echo, or from
stdin when it is not a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if token == "" {
				var err error
				if token, err = readToken(cmd); err != nil {
					return err
				}
			}

			a, err := e.open(ctx)
			if err != nil {
				return err
			}

			s, err := a.SaveToken(ctx, token)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s signed in as %s\n", okMark, s.UserID)

			if s.ExpiresAt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  token expires %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "access token (JWT)")

	return cmd
}

func readToken(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())

	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Access token: ")

		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())

		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}

		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading token: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}

			if err := a.Logout(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s signed out\n", okMark)

			return nil
		},
	}
}
