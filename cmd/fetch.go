package main

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/safety-kpi/internal/fetcher"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download an ITA establishment data file",
	Long:  "Downloads an ITA data file over HTTP with retry and rate limiting. ZIP archives are unpacked and the single CSV inside is kept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if v, _ := cmd.Flags().GetString("url"); v != "" {
			cfg.Fetch.URL = v
		}
		if v, _ := cmd.Flags().GetString("dest"); v != "" {
			cfg.Fetch.Dest = v
		}
		if err := cfg.Validate("fetch"); err != nil {
			return eris.Wrap(err, "invalid configuration")
		}

		name, err := fileNameFromURL(cfg.Fetch.URL)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.Fetch.Dest, 0o755); err != nil {
			return eris.Wrap(err, "fetch: create destination")
		}

		var dl fetcher.Downloader = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:         cfg.Fetch.UserAgent,
			Timeout:           time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries:        cfg.Fetch.MaxRetries,
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		})

		d, err := dl.Download(ctx, cfg.Fetch.URL, filepath.Join(cfg.Fetch.Dest, name))
		if err != nil {
			return eris.Wrap(err, "fetch: download")
		}
		dst := d.Path

		if strings.EqualFold(filepath.Ext(dst), ".zip") || d.ContentType == "application/zip" {
			extracted, err := fetcher.ExtractSingle(dst, cfg.Fetch.Dest, ".csv")
			if err != nil {
				return eris.Wrap(err, "fetch: extract")
			}
			if err := os.Remove(dst); err != nil {
				zap.L().Warn("failed to remove archive", zap.String("path", dst), zap.Error(err))
			}
			dst = extracted
		}

		fmt.Println(dst)
		return nil
	},
}

// fileNameFromURL returns the last path segment of a download URL.
func fileNameFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrap(err, "fetch: parse url")
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", eris.Errorf("fetch: url %q has no file name", raw)
	}
	return name, nil
}

func init() {
	fetchCmd.Flags().String("url", "", "ITA data file or ZIP archive URL")
	fetchCmd.Flags().String("dest", "", "destination directory (default data/raw)")
	rootCmd.AddCommand(fetchCmd)
}
