package runner

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"research-agent/internal/apperr"
	"research-agent/internal/core"
	"research-agent/internal/dedup"
	"research-agent/internal/logger"
)

// collect fans every configured collector out on its own worker (
// "each collector runs on its own worker"), deduplicates the combined
// batch, and persists every surviving Document. It returns the kept
// documents and how many were dropped as duplicates (store-level
// canonical-URL collisions plus in-memory near-duplicate matches).
func (r *Runner) collect(ctx context.Context) ([]core.Document, int, error) {
	p := pool.NewWithResults[[]core.Document]().WithContext(ctx)
	for _, c := range r.collectorList {
		c := c
		p.Go(func(ctx context.Context) ([]core.Document, error) {
			docs := c.Collect(ctx, r.cfg)
			logger.Info("collector finished", "collector", c.Name(), "documents", len(docs))
			return docs, nil
		})
	}
	batches, err := p.Wait()
	if err != nil {
		return nil, 0, err
	}

	var raw []core.Document
	for _, b := range batches {
		raw = append(raw, b...)
	}

	kept := dedup.Deduplicate(r.dedup, raw)
	dupDropped := len(raw) - len(kept)
	logger.Info("dedup lsh band occupancy", "bands", r.dedup.BandOccupancy())

	persisted := make([]core.Document, 0, len(kept))
	for _, d := range kept {
		if err := r.store.InsertDocument(d); err != nil {
			if apperr.Is(err, apperr.DuplicateCanonicalURL) {
				dupDropped++
				continue
			}
			logger.Warn("failed to persist document, skipping", "document_id", d.ID, "error", err.Error())
			continue
		}
		persisted = append(persisted, d)
	}

	return persisted, dupDropped, nil
}
