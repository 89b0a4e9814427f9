package sevenzip

import (
	"fmt"

	"repack/internal/config"
)

// Format identifies the archive container produced by Create.
type Format string

const (
	// FormatSevenZ is a plain .7z archive with LZMA2 compression.
	FormatSevenZ Format = "7z"
	// FormatZip is a .zip archive with deflate compression.
	FormatZip Format = "zip"
	// FormatZstdWrapped is a .7z archive wrapped in a second zstd layer,
	// written as <name>.7z.zst.
	FormatZstdWrapped Format = "zst"
)

// Recipe describes how Create builds an archive. The zero value is not
// usable; build one with RecipeFromConfig or set every field.
type Recipe struct {
	Format         Format
	Level          int
	Solid          bool
	DictionarySize string
}

// RecipeFromConfig maps the archive config section onto a Recipe.
func RecipeFromConfig(cfg *config.Config) Recipe {
	return Recipe{
		Format:         Format(cfg.Archive.Format),
		Level:          cfg.Archive.Level,
		Solid:          cfg.Archive.Solid,
		DictionarySize: cfg.Archive.DictionarySize,
	}
}

// validate rejects recipes Create cannot express.
func (r Recipe) validate() error {
	switch r.Format {
	case FormatSevenZ, FormatZip, FormatZstdWrapped:
	default:
		return fmt.Errorf("unsupported archive format %q", r.Format)
	}
	if r.Level < 0 || r.Level > 9 {
		return fmt.Errorf("compression level %d outside 0-9", r.Level)
	}
	return nil
}

// fastBytes derives the LZMA2 fast-bytes setting from the compression
// level, clamped to 7-Zip's sensible range.
func fastBytes(level int) int {
	return min(64, max(32, level*8))
}
