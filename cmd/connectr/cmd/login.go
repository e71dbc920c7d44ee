package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/connectr/internal/connect"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and register this device",
	Long: `Sign in with an account email and password.

Depending on service.login_type the platform may ask you to pick, name or
remove a registered device. Questions are asked on the terminal.

The password may also be supplied with CONNECTR_PASSWORD.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget stored tokens and credentials",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd)

	loginCmd.Flags().StringP("username", "u", "", "account email")
	loginCmd.Flags().StringP("password", "p", "", "account password")
	mustBindPFlag("login.username", loginCmd.Flags().Lookup("username"))
	mustBindPFlag("login.password", loginCmd.Flags().Lookup("password"))
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	term := terminalPrompter()

	s, err := openSession(ctx, term)
	if err != nil {
		return err
	}
	defer s.Close()

	username, password, err := credentials(term)
	if err != nil {
		return err
	}

	if err := s.client.Login(ctx, username, password); err != nil {
		if errors.Is(err, connect.ErrLoginCancelled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Login cancelled.")
			return nil
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in (%s).\n", s.client.LoginType())
	return nil
}

func credentials(term interface {
	Input(title string) (string, error)
}) (string, string, error) {
	username := strings.TrimSpace(viper.GetString("login.username"))
	password := viper.GetString("login.password")

	var err error
	if username == "" {
		if username, err = term.Input("Email"); err != nil {
			return "", "", fmt.Errorf("reading email: %w", err)
		}
		username = strings.TrimSpace(username)
	}
	if password == "" {
		if password, err = term.Input("Password"); err != nil {
			return "", "", fmt.Errorf("reading password: %w", err)
		}
	}
	if username == "" || password == "" {
		return "", "", errors.New("email and password are required")
	}
	return username, password, nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, connect.NopPrompter{})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}
