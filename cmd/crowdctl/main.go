package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/noah-isme/crowdwatch-api/pkg/detection"
	"github.com/noah-isme/crowdwatch-api/pkg/session"
	"github.com/noah-isme/crowdwatch-api/pkg/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(newApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries settings shared by every subcommand. Flags override
// CROWDWATCH_* environment variables.
type app struct {
	v          *viper.Viper
	httpClient *http.Client
	logger     *zap.Logger
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix("crowdwatch")
	v.AutomaticEnv()
	v.SetDefault("api_url", "http://localhost:3000/api")
	v.SetDefault("detector_url", "http://localhost:5000")
	v.SetDefault("session_file", defaultSessionFile())
	v.SetDefault("download_dir", "./downloads")
	return &app{v: v, httpClient: &http.Client{Timeout: 2 * time.Minute}, logger: zap.NewNop()}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crowdwatch-session.json"
	}
	return filepath.Join(home, ".crowdwatch", "session.json")
}

func newRootCommand(a *app) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "crowdctl",
		Short:         "Command line client for the CrowdWatch dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				return nil
			}
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			a.logger = l
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("api", a.v.GetString("api_url"), "Auth API base URL (CROWDWATCH_API_URL)")
	flags.String("detector", a.v.GetString("detector_url"), "Detection service base URL (CROWDWATCH_DETECTOR_URL)")
	flags.String("session-file", a.v.GetString("session_file"), "Where tokens are kept between runs (CROWDWATCH_SESSION_FILE)")
	flags.String("download-dir", a.v.GetString("download_dir"), "Directory for downloaded files (CROWDWATCH_DOWNLOAD_DIR)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log HTTP session activity")
	_ = a.v.BindPFlag("api_url", flags.Lookup("api"))
	_ = a.v.BindPFlag("detector_url", flags.Lookup("detector"))
	_ = a.v.BindPFlag("session_file", flags.Lookup("session-file"))
	_ = a.v.BindPFlag("download_dir", flags.Lookup("download-dir"))

	cmd.AddCommand(newLoginCommand(a, false))
	cmd.AddCommand(newLoginCommand(a, true))
	cmd.AddCommand(newSignupCommand(a))
	cmd.AddCommand(newMeCommand(a))
	cmd.AddCommand(newLogoutCommand(a))
	cmd.AddCommand(newUsersCommand(a))
	cmd.AddCommand(newDetectCommand(a))
	cmd.AddCommand(newZonesCommand(a))
	cmd.AddCommand(newCountsCommand(a))
	cmd.AddCommand(newDownloadsCommand(a))
	return cmd
}

// session builds a client over the on-disk token store. An unrecoverable
// refresh failure tells the user to log in again.
func (a *app) session(cmd *cobra.Command) *session.Client {
	return session.New(a.v.GetString("api_url"), session.NewFileStore(a.v.GetString("session_file")),
		session.WithHTTPClient(a.httpClient),
		session.WithLogger(a.logger),
		session.OnLoginRequired(func() {
			fmt.Fprintln(cmd.ErrOrStderr(), "session expired, run `crowdctl login` again")
		}),
	)
}

// detector talks to the detection service without credentials; the service
// is unauthenticated and must never see the dashboard's tokens.
func (a *app) detector() *detection.Client {
	return detection.NewClient(a.v.GetString("detector_url"), a.httpClient)
}

func (a *app) storage() (*storage.LocalStorage, error) {
	return storage.NewLocalStorage(a.v.GetString("download_dir"))
}
