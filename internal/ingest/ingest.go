// Package ingest registers cover images from the covers directory as
// catalog items: a one-shot scan plus an fsnotify watcher for covers
// dropped in while the process runs.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"coverdex/internal/catalog"
	"coverdex/internal/logging"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".heic": true,
}

var titleCaser = cases.Title(language.Und)

// IsCoverImage reports whether the path looks like a cover image.
func IsCoverImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// ItemID derives the catalog identifier from a cover path: the file
// name without its extension.
func ItemID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DisplayTitle renders a human-facing title from a file stem:
// separators become spaces and words are title-cased.
func DisplayTitle(stem string) string {
	text := strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(stem)
	text = strings.Join(strings.Fields(text), " ")
	return titleCaser.String(text)
}

// Scan walks the covers directory once and registers every image that
// is not yet in the catalog. Returns the ids of newly created items.
func Scan(ctx context.Context, store *catalog.Store, coversDir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	entries, err := os.ReadDir(coversDir)
	if err != nil {
		return nil, fmt.Errorf("read covers directory: %w", err)
	}

	var created []string
	for _, entry := range entries {
		if entry.IsDir() || !IsCoverImage(entry.Name()) {
			continue
		}
		path := filepath.Join(coversDir, entry.Name())
		id, err := register(ctx, store, path)
		if err != nil {
			return created, err
		}
		if id != "" {
			created = append(created, id)
		}
	}
	if len(created) > 0 {
		logger.Info("covers ingested",
			logging.Int("count", len(created)),
			logging.String(logging.FieldEventType, "ingest_scan"),
		)
	}
	return created, nil
}

// register creates the catalog item for a cover unless it already
// exists. Returns the new id, or "" when the cover was known.
func register(ctx context.Context, store *catalog.Store, path string) (string, error) {
	id := ItemID(path)
	existing, err := store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", nil
	}
	if _, err := store.NewItem(ctx, id, path, filepath.Base(path), DisplayTitle(id)); err != nil {
		return "", fmt.Errorf("register cover %s: %w", id, err)
	}
	return id, nil
}
