package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Create an account or sign in",
	}
	cmd.AddCommand(newSignupCommand(opts), newSigninCommand(opts))
	return cmd
}

func newSignupCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signup <email>",
		Short: "Create an account on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			user, err := opts.client().Register(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s (id %s). Sign in with: kitchenhub auth signin %s\n",
				user.Email, user.ID, user.Email)
			return nil
		},
	}
}

func newSigninCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "signin <email>",
		Short: "Sign in and print the session token",
		Long: `Sign in and print the bearer token. Export it so the other
commands can use it:

  export KITCHENHUB_CLIENT_TOKEN=$(kitchenhub auth signin you@example.com)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			token, user, err := opts.client().Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Signed in as %s (id %s).\n", user.Email, user.ID)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

// readPassword prompts on stderr and reads without echo when stdin is a
// terminal; otherwise it reads a line from stdin (for scripting).
func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(cmd.ErrOrStderr())
		return string(raw), err
	}
	var password string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &password); err != nil {
		return "", err
	}
	return password, nil
}
