package orchestrator

import (
	"sort"

	"research-agent/internal/core"
	"research-agent/internal/dedup"
)

// fuseRRF merges per-backend ranked result lists with Reciprocal Rank
// Fusion: for each unique URL, rrf_score = sum(1 / (RRFConstant + rank))
// over every backend that returned it (rank is 1-based position within
// that backend's own list). Provenance tracks which backends surfaced
// each URL. Output is sorted descending by fused score.
func fuseRRF(perBackend map[core.SearchBackend][]core.SearchResult) []core.SearchResult {
	type fusedEntry struct {
		result  core.SearchResult
		score   float64
		sources []core.SearchBackend
	}

	byURL := make(map[string]*fusedEntry)
	var order []string // first-seen order, for a stable base before sorting

	for _, backend := range core.BackendOrder {
		results, ok := perBackend[backend]
		if !ok {
			continue
		}
		for rank, r := range results {
			contribution := 1.0 / float64(RRFConstant+rank+1)
			entry, exists := byURL[r.URL]
			if !exists {
				entry = &fusedEntry{result: r}
				byURL[r.URL] = entry
				order = append(order, r.URL)
			}
			entry.score += contribution
			entry.sources = append(entry.sources, backend)
		}
	}

	fused := make([]core.SearchResult, 0, len(order))
	for _, url := range order {
		entry := byURL[url]
		result := entry.result
		result.RRFScore = entry.score
		result.ProvenanceBackends = entry.sources
		fused = append(fused, result)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].RRFScore > fused[j].RRFScore
	})
	return fused
}

// dedupContent drops entries whose title+snippet shingles are >=
// DuplicateJaccardThreshold similar (MinHash-estimated Jaccard) to an
// already-kept entry, preserving fused's score order.
func dedupContent(fused []core.SearchResult) []core.SearchResult {
	var kept []core.SearchResult
	for _, r := range fused {
		text := r.Title + " " + r.Snippet
		duplicate := false
		for _, k := range kept {
			if dedup.JaccardSimilarity(text, k.Title+" "+k.Snippet) >= DuplicateJaccardThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, r)
		}
	}
	return kept
}

// diversityOrder round-robin interleaves results by backend in the fixed
// order core.BackendOrder, so consecutive entries favor distinct sources
// rather than letting one backend's block dominate the head of the list.
// Ties within a backend preserve their post-fusion relative order.
func diversityOrder(results []core.SearchResult) []core.SearchResult {
	buckets := make(map[core.SearchBackend][]core.SearchResult, len(core.BackendOrder))
	for _, r := range results {
		buckets[r.Backend] = append(buckets[r.Backend], r)
	}

	ordered := make([]core.SearchResult, 0, len(results))
	for {
		addedAny := false
		for _, backend := range core.BackendOrder {
			bucket := buckets[backend]
			if len(bucket) == 0 {
				continue
			}
			ordered = append(ordered, bucket[0])
			buckets[backend] = bucket[1:]
			addedAny = true
		}
		if !addedAny {
			break
		}
	}
	return ordered
}
