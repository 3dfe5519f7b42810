package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/comigor/folio-go/internal/auth"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd.InOrStdin())
			defer p.Close()
			var err error
			if email, err = p.ask("Email: ", email); err != nil {
				return err
			}
			if password, err = p.secret("Password: ", password); err != nil {
				return err
			}
			if err := a.auth.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintln(a.out, okStyle.Render("Logged in as "+email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	return cmd
}

func newSignupCmd(a *app) *cobra.Command {
	var form auth.Signup
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd.InOrStdin())
			defer p.Close()
			var err error
			if form.Name, err = p.ask("Name: ", form.Name); err != nil {
				return err
			}
			if form.Email, err = p.ask("Email: ", form.Email); err != nil {
				return err
			}
			if form.Password, err = p.secret("Password: ", form.Password); err != nil {
				return err
			}
			if form.Confirm, err = p.secret("Confirm password: ", form.Confirm); err != nil {
				return err
			}
			if err := a.auth.Signup(cmd.Context(), form); err != nil {
				return err
			}
			fmt.Fprintln(a.out, okStyle.Render("Account created for "+form.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&form.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "Password (prompted when omitted)")
	cmd.Flags().StringVar(&form.Confirm, "confirm", "", "Password confirmation (prompted when omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.auth.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, okStyle.Render("Logged out"))
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.auth.Require(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s <%s>\n", titleStyle.Render(u.Name), u.Email)
			return nil
		},
	}
}
