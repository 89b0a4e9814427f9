package naming

import (
	"fmt"
	"strings"
)

// maxFileNameRunes caps archive base names so that statistics suffixes and
// archive extensions still fit common filesystem limits.
const maxFileNameRunes = 150

// unsafeCharReplacer maps filesystem-reserved characters to underscores.
// Spaces and ordinary punctuation are kept.
var unsafeCharReplacer = strings.NewReplacer(
	"<", "_",
	">", "_",
	":", "_",
	"\"", "_",
	"|", "_",
	"?", "_",
	"*", "_",
	"/", "_",
	"\\", "_",
)

// SafeFileName makes a title usable as an on-disk file name.
func SafeFileName(name string) string {
	safe := unsafeCharReplacer.Replace(name)
	runes := []rune(safe)
	if len(runes) > maxFileNameRunes {
		safe = string(runes[:maxFileNameRunes])
	}
	return safe
}

// FormatTitleStats appends media statistics to a title in the published
// convention: "<title> [12P+2V - 345MB]". The video term is omitted when
// no videos are present; the size is whole megabytes, truncated.
func FormatTitleStats(title string, imageCount, videoCount int, totalBytes int64) string {
	totalMB := totalBytes / (1024 * 1024)
	if videoCount > 0 {
		return fmt.Sprintf("%s [%dP+%dV - %dMB]", title, imageCount, videoCount, totalMB)
	}
	return fmt.Sprintf("%s [%dP - %dMB]", title, imageCount, totalMB)
}
