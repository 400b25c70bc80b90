package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/crowdwatch-api/pkg/session"
)

func newLoginCommand(a *app, admin bool) *cobra.Command {
	var username, password string

	use, short := "login", "Log in and store the session"
	if admin {
		use, short = "admin-login", "Log in as an administrator and store the session"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = readSecret(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			client := a.session(cmd)
			login := client.Login
			if admin {
				login = client.AdminLogin
			}
			pair, err := login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (access token valid for %s)\n", username, pair.ExpiresIn)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newSignupCommand(a *app) *cobra.Command {
	var req session.SignupRequest

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				var err error
				if req.Password, err = readSecret(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			pair, err := a.session(cmd).Signup(cmd.Context(), req)
			if err != nil {
				return err
			}
			msg := pair.Message
			if msg == "" {
				msg = "Signup successful"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s, logged in as %s\n", msg, req.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "Email address")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "Password (read from stdin when omitted)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Display name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newMeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged in identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.session(cmd).Me(cmd.Context())
			if err != nil {
				return err
			}
			role := id.Role
			if role == "" {
				role = "user"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:       %s\n", id.Subject)
			fmt.Fprintf(out, "username: %s\n", id.Username)
			if id.Email != "" {
				fmt.Fprintf(out, "email:    %s\n", id.Email)
			}
			fmt.Fprintf(out, "name:     %s\n", id.Name)
			fmt.Fprintf(out, "role:     %s\n", role)
			return nil
		},
	}
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and forget the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session(cmd).Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully")
			return nil
		},
	}
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
