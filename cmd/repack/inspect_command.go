package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"repack/internal/deps"
	"repack/internal/imaging"
	"repack/internal/services/sevenzip"
)

var inspectImageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
	".tiff": {},
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <path>...",
		Short: "Describe archives, folders, and images without processing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var client *sevenzip.Client
			for _, path := range args {
				info, err := os.Stat(path)
				if err != nil {
					return fmt.Errorf("inspect %s: %w", path, err)
				}

				if info.IsDir() {
					files, size, err := summarizeDir(path)
					if err != nil {
						return fmt.Errorf("inspect %s: %w", path, err)
					}
					fmt.Fprintf(out, "%s: folder, %d files, %s\n", filepath.Base(path), files, formatBytes(size))
					continue
				}

				ext := strings.ToLower(filepath.Ext(path))
				if _, ok := inspectImageExts[ext]; ok {
					image, err := imaging.Probe(path)
					if err != nil {
						return fmt.Errorf("probe %s: %w", path, err)
					}
					fmt.Fprintf(out, "%s: %dx%d %s, %s\n", filepath.Base(path), image.Width, image.Height, image.Format, formatBytes(image.Size))
					continue
				}

				if client == nil {
					client, err = sevenzip.New(deps.Resolve(cfg.Paths.ToolsDir, cfg.SevenZipBinary()), cfg)
					if err != nil {
						return err
					}
				}
				listing, err := client.List(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("list %s: %w", path, err)
				}
				fmt.Fprintf(out, "%s: %d entries, %s\n", filepath.Base(path), len(listing.Entries), formatBytes(info.Size()))
			}
			return nil
		},
	}
}

func summarizeDir(root string) (int, int64, error) {
	var files int
	var size int64
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		files++
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return files, size, nil
}
