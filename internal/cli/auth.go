package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pft/internal/auth"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(registerCmd)

	loginCmd.Flags().StringP("email", "e", "", "account email")
	loginCmd.Flags().StringP("password", "p", "", "password (or PFT_PASSWORD, or read from stdin)")
	loginCmd.Flags().Bool("remember", true, "keep the session after this process exits")

	registerCmd.Flags().StringP("name", "n", "", "display name")
	registerCmd.Flags().StringP("email", "e", "", "account email")
	registerCmd.Flags().StringP("password", "p", "", "password (or PFT_PASSWORD, or read from stdin)")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	Long: `Exchange email and password for an access token. With --remember (the
default) the token and refresh cookie are kept in the local state file so
later commands stay signed in.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func runLogin(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	remember, _ := cmd.Flags().GetBool("remember")
	if email == "" {
		return errors.New("email required: pft login --email you@example.com")
	}
	password, err := passwordFrom(cmd)
	if err != nil {
		return err
	}

	app, err := appFor(cmd)
	if err != nil {
		return err
	}
	u, err := app.Session.Login(cmd.Context(), email, password, remember)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", displayName(u.Name, u.Email), u.Email)
	if !remember {
		fmt.Fprintln(cmd.OutOrStdout(), "Session not remembered: later commands will need a new login.")
	}
	return nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the local session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFor(cmd)
		if err != nil {
			return err
		}
		app.Session.Start(cmd.Context())
		if err := app.Session.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFor(cmd)
		if err != nil {
			return err
		}
		if app.Session.Start(cmd.Context()) != auth.StatusAuthenticated {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
			return nil
		}
		u, err := app.Session.ReloadMe(cmd.Context())
		if err != nil {
			return err
		}
		return newPrinter(cmd).emit(u, userTable(u))
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Long:  `Create an account. Registration does not sign in; run 'pft login' afterwards.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		password, err := passwordFrom(cmd)
		if err != nil {
			return err
		}

		app, err := appFor(cmd)
		if err != nil {
			return err
		}
		u, err := app.Session.Register(cmd.Context(), name, email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s <%s>. Run 'pft login --email %s' to sign in.\n",
			displayName(u.Name, u.Email), u.Email, u.Email)
		return nil
	},
}

// passwordFrom reads the password from the flag, then PFT_PASSWORD, then the
// first line of stdin.
func passwordFrom(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("password"); p != "" {
		return p, nil
	}
	if p := os.Getenv("PFT_PASSWORD"); p != "" {
		return p, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	return readLine(cmd.InOrStdin())
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password required")
	}
	return line, nil
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}

