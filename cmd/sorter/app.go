package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/spice-sorter/internal/engine"
	"github.com/Veraticus/spice-sorter/internal/ledger"
	"github.com/Veraticus/spice-sorter/internal/storage"
)

// app bundles the services a command needs.
type app struct {
	store      *storage.SQLiteStorage
	classifier *engine.Classifier
	ledger     *ledger.Service
}

// openApp opens and migrates the configured database and wires the
// classifier with the configured merchant aliases.
func (o *rootOptions) openApp(ctx context.Context) (*app, error) {
	normalizer, err := o.cfg.Normalizer()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, o.cfg.Database.Path, storage.WithNormalizer(normalizer))
	if err != nil {
		return nil, err
	}

	classifier := engine.New(store, store, engine.WithNormalizer(normalizer))
	return &app{
		store:      store,
		classifier: classifier,
		ledger:     ledger.New(store, classifier),
	}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%d days ago", days)
	}
	return t.Format("2006-01-02 15:04")
}
