package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/crowdwatch-api/pkg/detection"
)

func newDetectCommand(a *app) *cobra.Command {
	var skipDownload bool

	cmd := &cobra.Command{
		Use:   "detect <image-or-video>",
		Short: "Upload media for people detection and save the annotated result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			media, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer media.Close() //nolint:errcheck

			client := a.detector()
			result, err := client.Detect(cmd.Context(), filepath.Base(args[0]), media)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Message)
			if result.Warning != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", result.Warning)
			}
			fmt.Fprintf(out, "%d detections\n", len(result.Detections))
			for _, d := range result.Detections {
				fmt.Fprintf(out, "  %s %.2f\n", d.Class, d.Confidence)
			}

			if skipDownload || result.FileURL == "" {
				return nil
			}
			store, err := a.storage()
			if err != nil {
				return err
			}
			saved, err := download(cmd, client, store, result.FileURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "saved %s\n", saved)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipDownload, "no-download", false, "Do not fetch the annotated file")
	return cmd
}

type streamSaver interface {
	SaveStream(name string, r io.Reader) (string, error)
}

// download pipes the detection service response straight into storage.
func download(cmd *cobra.Command, client *detection.Client, store streamSaver, fileURL string) (string, error) {
	name := path.Base(strings.SplitN(fileURL, "?", 2)[0])
	if name == "." || name == "/" {
		name = "annotated"
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(client.Download(cmd.Context(), fileURL, pw))
	}()
	saved, err := store.SaveStream(name, pr)
	_ = pr.Close()
	return saved, err
}

func newZonesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zones",
		Short: "Manage counting zones on the detection service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newZonesSetCommand(a))
	return cmd
}

func newZonesSetCommand(a *app) *cobra.Command {
	var (
		file        string
		rects       []string
		frameWidth  float64
		frameHeight float64
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the zone set with polygons from a JSON file or pixel rectangles",
		Example: `  crowdctl zones set --file zones.json
  crowdctl zones set --frame-width 1280 --frame-height 720 --rect entrance=0,0,640,360 --rect 640,360,640,360`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var zones []detection.Zone
			switch {
			case file != "" && len(rects) > 0:
				return errors.New("use either --file or --rect, not both")
			case file != "":
				raw, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, &zones); err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
			case len(rects) > 0:
				for i, raw := range rects {
					z, err := parseRect(raw, i+1, frameWidth, frameHeight)
					if err != nil {
						return err
					}
					zones = append(zones, z)
				}
			default:
				return errors.New("one of --file or --rect is required")
			}

			ack, err := a.detector().SetZones(cmd.Context(), zones)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d zones)\n", ack.Message, ack.ZoneCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON file with an array of {name, points:[{x,y}]} in normalized coordinates")
	cmd.Flags().StringArrayVar(&rects, "rect", nil, "Rectangle as [name=]x,y,w,h in frame pixels (repeatable)")
	cmd.Flags().Float64Var(&frameWidth, "frame-width", 0, "Frame width in pixels for --rect")
	cmd.Flags().Float64Var(&frameHeight, "frame-height", 0, "Frame height in pixels for --rect")
	return cmd
}

// parseRect reads "[name=]x,y,w,h". Unnamed zones are numbered from 1.
func parseRect(raw string, index int, frameWidth, frameHeight float64) (detection.Zone, error) {
	name := fmt.Sprintf("zone-%d", index)
	if i := strings.Index(raw, "="); i >= 0 {
		name, raw = raw[:i], raw[i+1:]
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return detection.Zone{}, fmt.Errorf("rect %q: want x,y,w,h", raw)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return detection.Zone{}, fmt.Errorf("rect %q: %w", raw, err)
		}
		v[i] = f
	}
	return detection.RectZone(name, v[0], v[1], v[2], v[3], frameWidth, frameHeight)
}

func newCountsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Live per-zone people counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newCountsWatchCommand(a))
	return cmd
}

func newCountsWatchCommand(a *app) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll live counts until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			poller := detection.NewPoller(a.detector(), interval, a.logger)
			err := poller.Run(cmd.Context(), func(counts []int) error {
				cells := make([]string, len(counts))
				for i, n := range counts {
					cells[i] = fmt.Sprintf("zone %d: %d", i+1, n)
				}
				if len(cells) == 0 {
					cells = append(cells, "no zones")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", time.Now().Format("15:04:05"), strings.Join(cells, "  "))
				return nil
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", detection.DefaultPollInterval, "Polling interval")
	return cmd
}

func newDownloadsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "Manage locally saved files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete downloaded files older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.storage()
			if err != nil {
				return err
			}
			deleted, err := store.CleanupOlderThan(olderThan)
			if err != nil {
				return err
			}
			for _, name := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files removed from %s\n", len(deleted), store.Dir())
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Age cutoff")
	cmd.AddCommand(prune)
	return cmd
}
