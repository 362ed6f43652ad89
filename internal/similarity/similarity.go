// Package similarity implements tag-based similarity ranking over AI-derived
// image features. An image reduces to a set of normalized string tags; the
// similarity between two images is the cardinality of the tag-set
// intersection. Deliberately simple and explainable: no weighting, no
// frequency terms, every matching tag counts once.
package similarity

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/archvision/archvision-backend/internal/types"
)

// ExtractTags flattens a feature record into its tag set: every object_type,
// every object attribute and every overall_style entry, lowercased, trimmed
// and deduplicated. Blank strings are dropped. Order is first occurrence.
func ExtractTags(features types.ImageFeatures) []string {
	raw := make([]string, 0, 8)
	for _, obj := range features.MainObjects {
		raw = append(raw, obj.ObjectType)
		raw = append(raw, obj.Attributes...)
	}
	raw = append(raw, features.OverallStyle...)

	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}

// ExtractTagsJSON extracts tags from a stored features blob. Absent, empty or
// malformed features yield the empty set, never an error.
func ExtractTagsJSON(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var features types.ImageFeatures
	if err := json.Unmarshal(raw, &features); err != nil {
		return []string{}
	}
	return ExtractTags(features)
}

// Score counts the tags common to both sets. Inputs are normalized the same
// way ExtractTags normalizes, so matching is exact string equality.
func Score(candidateTags, queryTags []string) int {
	if len(candidateTags) == 0 || len(queryTags) == 0 {
		return 0
	}
	query := make(map[string]struct{}, len(queryTags))
	for _, t := range queryTags {
		query[t] = struct{}{}
	}
	matched := make(map[string]struct{})
	for _, t := range candidateTags {
		if _, ok := query[t]; ok {
			matched[t] = struct{}{}
		}
	}
	return len(matched)
}

// Match pairs a product with its similarity score for a query.
type Match struct {
	Product *types.Product
	Score   int
}

// Rank scores every product against the query tag set and returns the top
// limit matches. Zero-score products are dropped. Ordering is score
// descending, then created_at descending, then ID ascending, so equal scores
// rank deterministically with recency preferred.
func Rank(products []*types.Product, queryTags []string, limit int) []Match {
	matches := make([]Match, 0, len(products))
	for _, p := range products {
		if p == nil {
			continue
		}
		score := Score(ExtractTagsJSON(p.Features), queryTags)
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{Product: p, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if !matches[i].Product.CreatedAt.Equal(matches[j].Product.CreatedAt) {
			return matches[i].Product.CreatedAt.After(matches[j].Product.CreatedAt)
		}
		return matches[i].Product.ID.String() < matches[j].Product.ID.String()
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
