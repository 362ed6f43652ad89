package similarity

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/archvision/archvision-backend/internal/types"
)

func TestExtractTagsNormalizesAndDeduplicates(t *testing.T) {
	features := types.ImageFeatures{
		MainObjects: []types.IdentifiedObject{
			{ObjectType: "  Chair ", Attributes: []string{"WOODEN", "modern", "wooden"}},
			{ObjectType: "chair", Attributes: []string{"", "   "}},
		},
		OverallStyle: []string{"Minimalist", "modern"},
	}

	got := ExtractTags(features)
	want := []string{"chair", "wooden", "modern", "minimalist"}

	if len(got) != len(want) {
		t.Fatalf("tag count: want=%d got=%d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tag[%d]: want=%q got=%q", i, want[i], got[i])
		}
	}
}

func TestExtractTagsEmptyFeatures(t *testing.T) {
	if got := ExtractTags(types.ImageFeatures{}); len(got) != 0 {
		t.Fatalf("expected empty tag set, got=%v", got)
	}
}

func TestExtractTagsIdempotent(t *testing.T) {
	features := types.ImageFeatures{
		MainObjects:  []types.IdentifiedObject{{ObjectType: "sofa", Attributes: []string{"leather"}}},
		OverallStyle: []string{"industrial"},
	}
	first := ExtractTags(features)
	second := ExtractTags(features)
	if len(first) != len(second) {
		t.Fatalf("extraction not idempotent: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("extraction not idempotent at %d: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestExtractTagsJSONMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"garbage", []byte("not json")},
		{"wrong shape", []byte(`{"main_objects": "nope"}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractTagsJSON(tc.raw); len(got) != 0 {
				t.Fatalf("expected empty set, got=%v", got)
			}
		})
	}
}

func TestScoreSymmetric(t *testing.T) {
	a := []string{"chair", "wooden", "modern"}
	b := []string{"wooden", "table", "chair"}

	ab := Score(a, b)
	ba := Score(b, a)
	if ab != ba {
		t.Fatalf("score not symmetric: score(a,b)=%d score(b,a)=%d", ab, ba)
	}
	if ab != 2 {
		t.Fatalf("score: want=2 got=%d", ab)
	}
}

func TestScoreMonotonic(t *testing.T) {
	query := []string{"chair", "wooden"}
	candidate := []string{"chair"}

	base := Score(candidate, query)
	withMiss := Score(append(candidate, "velvet"), query)
	withHit := Score(append(candidate, "wooden"), query)

	if withMiss < base {
		t.Fatalf("adding a non-matching tag decreased score: %d -> %d", base, withMiss)
	}
	if withHit != base+1 {
		t.Fatalf("adding a matching tag: want=%d got=%d", base+1, withHit)
	}
}

func TestScoreEmptySets(t *testing.T) {
	if got := Score(nil, []string{"chair"}); got != 0 {
		t.Fatalf("empty candidate: want=0 got=%d", got)
	}
	if got := Score([]string{"chair"}, nil); got != 0 {
		t.Fatalf("empty query: want=0 got=%d", got)
	}
}

func TestScoreCountsDuplicateTagOnce(t *testing.T) {
	if got := Score([]string{"chair", "chair"}, []string{"chair"}); got != 1 {
		t.Fatalf("duplicate tag counted twice: want=1 got=%d", got)
	}
}

func mustFeaturesJSON(t *testing.T, features types.ImageFeatures) []byte {
	t.Helper()
	raw, err := json.Marshal(features)
	if err != nil {
		t.Fatalf("marshal features: %v", err)
	}
	return raw
}

func TestScoreStoredChairScenario(t *testing.T) {
	stored := types.ImageFeatures{
		MainObjects:  []types.IdentifiedObject{{ObjectType: "chair", Attributes: []string{"wooden", "modern"}}},
		OverallStyle: []string{"minimalist"},
	}
	query := types.ImageFeatures{
		MainObjects: []types.IdentifiedObject{{ObjectType: "chair", Attributes: []string{"wooden"}}},
	}

	queryTags := ExtractTags(query)
	if len(queryTags) != 2 {
		t.Fatalf("query tags: want=2 got=%v", queryTags)
	}
	if got := Score(ExtractTags(stored), queryTags); got != 2 {
		t.Fatalf("scenario score: want=2 got=%d", got)
	}
}

func TestRankDropsZeroScores(t *testing.T) {
	match := &types.Product{
		ID: uuid.New(),
		Features: mustFeaturesJSON(t, types.ImageFeatures{
			MainObjects: []types.IdentifiedObject{{ObjectType: "chair"}},
		}),
	}
	miss := &types.Product{
		ID: uuid.New(),
		Features: mustFeaturesJSON(t, types.ImageFeatures{
			MainObjects: []types.IdentifiedObject{{ObjectType: "lamp"}},
		}),
	}

	got := Rank([]*types.Product{miss, match}, []string{"chair"}, 10)
	if len(got) != 1 {
		t.Fatalf("match count: want=1 got=%d", len(got))
	}
	if got[0].Product.ID != match.ID {
		t.Fatalf("wrong product ranked: want=%s got=%s", match.ID, got[0].Product.ID)
	}
	if got[0].Score != 1 {
		t.Fatalf("score: want=1 got=%d", got[0].Score)
	}
}

func TestRankOrdersByScoreThenRecency(t *testing.T) {
	now := time.Now().UTC()
	strong := &types.Product{
		ID:        uuid.New(),
		CreatedAt: now.Add(-2 * time.Hour),
		Features: mustFeaturesJSON(t, types.ImageFeatures{
			MainObjects: []types.IdentifiedObject{{ObjectType: "chair", Attributes: []string{"wooden"}}},
		}),
	}
	weakOld := &types.Product{
		ID:        uuid.New(),
		CreatedAt: now.Add(-time.Hour),
		Features: mustFeaturesJSON(t, types.ImageFeatures{
			MainObjects: []types.IdentifiedObject{{ObjectType: "chair"}},
		}),
	}
	weakNew := &types.Product{
		ID:        uuid.New(),
		CreatedAt: now,
		Features: mustFeaturesJSON(t, types.ImageFeatures{
			MainObjects: []types.IdentifiedObject{{ObjectType: "chair"}},
		}),
	}

	got := Rank([]*types.Product{weakOld, strong, weakNew}, []string{"chair", "wooden"}, 10)
	if len(got) != 3 {
		t.Fatalf("match count: want=3 got=%d", len(got))
	}
	if got[0].Product.ID != strong.ID {
		t.Fatalf("rank[0]: want strongest match, got=%s", got[0].Product.ID)
	}
	if got[1].Product.ID != weakNew.ID || got[2].Product.ID != weakOld.ID {
		t.Fatalf("tie-break should prefer recency: got=[%s %s]", got[1].Product.ID, got[2].Product.ID)
	}
}

func TestRankTruncatesToLimit(t *testing.T) {
	products := make([]*types.Product, 0, 15)
	for i := 0; i < 15; i++ {
		products = append(products, &types.Product{
			ID:        uuid.New(),
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Minute),
			Features: mustFeaturesJSON(t, types.ImageFeatures{
				MainObjects: []types.IdentifiedObject{{ObjectType: fmt.Sprintf("item%d", i), Attributes: []string{"shared"}}},
			}),
		})
	}

	got := Rank(products, []string{"shared"}, 10)
	if len(got) != 10 {
		t.Fatalf("limit: want=10 got=%d", len(got))
	}
}

func TestRankEmptyCatalog(t *testing.T) {
	if got := Rank(nil, []string{"chair"}, 10); len(got) != 0 {
		t.Fatalf("expected no matches, got=%d", len(got))
	}
}
