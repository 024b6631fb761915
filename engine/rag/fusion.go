package rag

import (
	"sort"

	"github.com/polyrag/polyrag/engine/semantic"
)

// DefaultRRFK is the rank-smoothing constant of Reciprocal Rank Fusion.
const DefaultRRFK = 60

// fuseRRF merges per-space result lists with Reciprocal Rank Fusion: each
// hit scores the sum of 1/(k+rank) over the lanes it appears in, rank
// 1-based. Ties break by the hit's best single-lane rank, then by ID, so the
// fused order is deterministic regardless of lane order.
func fuseRRF(lanes [][]semantic.Hit, k, topK int) []semantic.Hit {
	if k <= 0 {
		k = DefaultRRFK
	}

	type fused struct {
		hit      semantic.Hit
		score    float32
		bestRank int
	}

	byID := make(map[string]*fused)
	var order []string

	for _, lane := range lanes {
		for i, h := range lane {
			rank := i + 1
			f, ok := byID[h.ID]
			if !ok {
				f = &fused{hit: h, bestRank: rank}
				byID[h.ID] = f
				order = append(order, h.ID)
			}
			f.score += 1 / float32(k+rank)
			if rank < f.bestRank {
				f.bestRank = rank
			}
			// Prefer a payload-bearing copy; image-lane hits for the same
			// point carry the same payload, so first wins is fine.
			if f.hit.Text == "" && h.Text != "" {
				f.hit = h
			}
		}
	}

	all := make([]*fused, 0, len(order))
	for _, id := range order {
		all = append(all, byID[id])
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		if all[i].bestRank != all[j].bestRank {
			return all[i].bestRank < all[j].bestRank
		}
		return all[i].hit.ID < all[j].hit.ID
	})

	if topK > 0 && len(all) > topK {
		all = all[:topK]
	}

	out := make([]semantic.Hit, len(all))
	for i, f := range all {
		h := f.hit
		h.Score = f.score
		out[i] = h
	}
	return out
}
