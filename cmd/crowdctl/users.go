package main

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/crowdwatch-api/pkg/session"
)

type userRow struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	LoginAttempts int       `json:"login_attempts"`
	CreatedAt     time.Time `json:"created_at"`
}

func newUsersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Administer user accounts (admin session required)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newUsersListCommand(a))
	cmd.AddCommand(newUsersDeleteCommand(a))
	cmd.AddCommand(newUsersExportCommand(a))
	return cmd
}

func newUsersListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.session(cmd)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, client.URL("/admin/users"), nil)
			if err != nil {
				return err
			}
			var out struct {
				Users []userRow `json:"users"`
				Total int       `json:"total"`
			}
			if err := client.DoJSON(req, &out); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tSTATUS\tATTEMPTS\tCREATED")
			for _, u := range out.Users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", u.ID, u.Username, u.Email, u.Status, u.LoginAttempts, u.CreatedAt.Format("2006-01-02"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d users\n", out.Total)
			return nil
		},
	}
}

func newUsersDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user and revoke their refresh tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.session(cmd)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodDelete, client.URL("/admin/users/"+url.PathEscape(args[0])), nil)
			if err != nil {
				return err
			}
			var out struct {
				Message string `json:"message"`
			}
			if err := client.DoJSON(req, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			return nil
		},
	}
}

func newUsersExportCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the user roster as CSV or PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.storage()
			if err != nil {
				return err
			}
			client := a.session(cmd)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet,
				client.URL("/admin/users/export?format="+url.QueryEscape(format)), nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			if err := session.CheckResponse(resp); err != nil {
				return err
			}
			defer resp.Body.Close() //nolint:errcheck

			path, err := store.SaveStream(exportFilename(resp, format), resp.Body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Export format: csv or pdf")
	return cmd
}

// exportFilename prefers the server's attachment name.
func exportFilename(resp *http.Response, format string) string {
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := filepath.Base(params["filename"]); name != "." && name != "/" {
			return name
		}
	}
	return "users." + format
}
