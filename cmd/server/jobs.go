// Package main provides the knowledge point matching server entry point.
package main

import (
	"context"
	"time"

	"github.com/ulinhsu/kpmatch-go/internal/logger"
	"github.com/ulinhsu/kpmatch-go/internal/search"
	"github.com/ulinhsu/kpmatch-go/internal/storage"
)

const indexRefreshInterval = 30 * time.Minute

// refreshSearchIndex periodically rebuilds the search index when the stored
// corpus size drifts from the indexed one, picking up questions written by
// other processes sharing the database file.
func refreshSearchIndex(ctx context.Context, idx *search.Index, repo *storage.QuestionRepository, log *logger.Logger) {
	ticker := time.NewTicker(indexRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := repo.Count(ctx)
			if err != nil {
				log.WithError(err).Error("Failed to count question corpus")
				continue
			}
			if count == 0 || count == idx.Statistics().IndexedCount {
				continue
			}

			log.WithField("stored", count).
				WithField("indexed", idx.Statistics().IndexedCount).
				Info("Corpus changed, rebuilding search index")
			rebuildSearchIndex(ctx, idx, repo, log)
		}
	}
}
