// Package dedup implements the Deduplicator: URL canonicalization,
// SHA-256 content hashing, and MinHash/LSH near-duplicate detection over
// shingled title+content tokens. State is process-wide and guarded by a
// RWMutex: readers (IsDuplicate) take the read lock, writers (Add) take
// the write lock.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"sync"

	"research-agent/internal/logger"
)

// trackingParams are stripped during canonicalization.
var trackingParamPrefixes = []string{"utm_", "gclid", "fbclid", "mc_cid", "mc_eid", "ref", "igshid"}

// secureHosts is a heuristic allow-list of hosts known to enforce HTTPS,
// used to upgrade http:// links observed from feeds that still advertise
// plain-text URLs ("known-secure host list or prior observation").
var secureHosts = map[string]bool{}

// CanonicalURL normalizes a URL: lowercase host, strip "www.", drop
// fragment, sort query params, drop tracking params, collapse trailing
// slash, and upgrade to https for known-secure hosts.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	if secureHosts[host] {
		scheme = "https"
	}

	query := u.Query()
	for key := range query {
		lower := strings.ToLower(key)
		for _, prefix := range trackingParamPrefixes {
			if strings.HasPrefix(lower, prefix) {
				query.Del(key)
				break
			}
		}
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var qs strings.Builder
	for i, k := range keys {
		if i > 0 {
			qs.WriteByte('&')
		}
		for _, v := range query[k] {
			qs.WriteString(k)
			qs.WriteByte('=')
			qs.WriteString(v)
		}
	}

	path := strings.TrimSuffix(u.Path, "/")

	canon := scheme + "://" + host + path
	if qs.Len() > 0 {
		canon += "?" + qs.String()
	}
	return canon
}

// RememberSecureHost records that host has been observed serving HTTPS, so
// future canonicalizations of http:// links to it are upgraded.
func RememberSecureHost(host string) {
	secureHosts[strings.ToLower(strings.TrimPrefix(host, "www."))] = true
}

// ComputeContentHash returns the SHA-256 hex digest of normalized content
// (whitespace-collapsed, lowercased), deterministic over equivalent content
// regardless of incidental formatting differences.
func ComputeContentHash(content string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Deduplicator tracks seen canonical URLs, content hashes, and MinHash
// signatures across a run, and answers near-duplicate queries via LSH.
type Deduplicator struct {
	mu            sync.RWMutex
	canonicalURLs map[string]bool
	contentHashes map[string]bool
	lsh           *lshIndex
}

// New constructs an empty Deduplicator with the required MinHash
// parameters: 128 permutations, shingle size 3, Jaccard threshold 0.7.
func New() *Deduplicator {
	return &Deduplicator{
		canonicalURLs: make(map[string]bool),
		contentHashes: make(map[string]bool),
		lsh:           newLSHIndex(defaultNumPermutations, defaultNumBands, 0.7),
	}
}

// BandOccupancy reports, per LSH band, how many of the 4096 hash slots
// have been written to. Exposed for health-check/metrics surfaces so an
// operator can tell a saturated band (recall degrading toward random
// collisions) from a healthy one.
func (d *Deduplicator) BandOccupancy() []uint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lsh.bandOccupancy()
}

// shingleText returns the text used to build a document's shingle set:
// title + content, shared with the orchestrator's title+snippet shingles
// reuse of the same primitive.
func shingleText(title, content string) string {
	if content == "" {
		return title
	}
	return title + " " + content
}

// IsDuplicate reports whether doc matches an already-registered document by
// canonical URL, content hash, or MinHash/LSH similarity above threshold.
func (d *Deduplicator) IsDuplicate(canonicalURL, contentHash, title, content string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.canonicalURLs[canonicalURL] {
		return true
	}
	if d.contentHashes[contentHash] {
		return true
	}
	sig := newMinHashSignature(shingles(shingleText(title, content), 3), defaultNumPermutations)
	return d.lsh.hasNeighbor(sig)
}

// Add registers a document's canonical URL, content hash, and MinHash
// signature, so subsequent IsDuplicate/deduplicate calls see it.
func (d *Deduplicator) Add(canonicalURL, contentHash, title, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.canonicalURLs[canonicalURL] = true
	d.contentHashes[contentHash] = true
	sig := newMinHashSignature(shingles(shingleText(title, content), 3), defaultNumPermutations)
	d.lsh.insert(sig)
}

// JaccardSimilarity estimates the Jaccard similarity of two texts' 3-token
// shingle sets via MinHash, independent of any Deduplicator instance.
// Used by the topic validator's Novelty metric
// ("1 - max_jaccard_minhash(topic, each existing researched topic)") and
// anywhere else a one-off similarity estimate is needed outside the
// stateful duplicate-tracking path.
func JaccardSimilarity(textA, textB string) float64 {
	sigA := newMinHashSignature(shingles(textA, 3), defaultNumPermutations)
	sigB := newMinHashSignature(shingles(textB, 3), defaultNumPermutations)
	return estimateJaccard(sigA, sigB)
}

// Deduplicable is the minimal shape Deduplicate needs from a caller's
// document type, so this package stays independent of internal/core.
type Deduplicable interface {
	DedupCanonicalURL() string
	DedupContentHash() string
	DedupTitle() string
	DedupContent() string
}

// Deduplicate filters docs in order, keeping the first occurrence of any
// canonical-URL/content-hash/MinHash-similar group and logging the batch
// dup rate (deduplicate()). Order within a batch is preserved
// (tie-break: "Documents produced in insertion order").
func Deduplicate[T Deduplicable](d *Deduplicator, docs []T) []T {
	kept := make([]T, 0, len(docs))
	dropped := 0
	for _, doc := range docs {
		canon := doc.DedupCanonicalURL()
		hash := doc.DedupContentHash()
		if d.IsDuplicate(canon, hash, doc.DedupTitle(), doc.DedupContent()) {
			dropped++
			continue
		}
		d.Add(canon, hash, doc.DedupTitle(), doc.DedupContent())
		kept = append(kept, doc)
	}
	if len(docs) > 0 {
		logger.Info("deduplicated batch", "input", len(docs), "kept", len(kept), "dropped", dropped)
	}
	return kept
}
