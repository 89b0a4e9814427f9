package sevenzip

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ArchiveInfo summarizes an archive listing.
type ArchiveInfo struct {
	Entries []string
}

// List returns the entry names inside archivePath, directories included.
func (c *Client) List(ctx context.Context, archivePath string) (*ArchiveInfo, error) {
	if strings.TrimSpace(archivePath) == "" {
		return nil, errors.New("archive path required")
	}
	res, err := c.run(ctx, []string{"l", archivePath}, listTimeout)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("list archive: 7z exited %d: %s", res.ExitCode, firstLine(res.Stderr))
	}
	return &ArchiveInfo{Entries: parseListing(res.Stdout)}, nil
}

// parseListing extracts entry names from 7z's table output. Entries sit
// between two dashed separator rows; the name column starts where the
// separator's final dash group begins, which keeps names containing
// spaces intact.
func parseListing(output string) []string {
	var entries []string
	nameOffset := -1
	inTable := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if isSeparatorRow(line) {
			if inTable {
				break
			}
			inTable = true
			nameOffset = strings.LastIndexByte(line, ' ') + 1
			continue
		}
		if !inTable || nameOffset <= 0 || len(line) <= nameOffset {
			continue
		}
		if name := strings.TrimSpace(line[nameOffset:]); name != "" {
			entries = append(entries, name)
		}
	}
	return entries
}

func isSeparatorRow(line string) bool {
	if !strings.HasPrefix(line, "---") {
		return false
	}
	for _, r := range line {
		if r != '-' && r != ' ' {
			return false
		}
	}
	return true
}
