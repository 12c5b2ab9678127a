package training

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfig(t *testing.T, def SessionDefinition, items map[Category][]Item) *SessionConfiguration {
	t.Helper()
	cfg, err := NewSessionConfiguration(def, items, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	return cfg
}

func TestSequencer_TotalAndCompletion(t *testing.T) {
	cfg := newConfig(t, SessionDefinition{Name: "mixed"}, map[Category][]Item{
		CategoryTechnique: makeItems(CategoryTechnique, "t1", "t2"),
		CategoryKata:      makeItems(CategoryKata, "k1"),
		CategoryStrike:    makeItems(CategoryStrike, "s1", "s2", "s3"),
	})
	seq := NewSequencer(cfg)

	require.Equal(t, 6, seq.Total())
	require.Equal(t, cfg.TotalSteps(), seq.Total())
	for i := 0; i < seq.Total(); i++ {
		_, ok := seq.At(i)
		assert.True(t, ok, "step %d should exist", i)
	}
	_, ok := seq.At(seq.Total())
	assert.False(t, ok)
	_, ok = seq.At(-1)
	assert.False(t, ok)
}

func TestSequencer_CategoryOrderIsMonotonic(t *testing.T) {
	items := map[Category][]Item{}
	// insert in reverse to make sure map order does not leak into the sequence
	for i := len(SequenceOrder) - 1; i >= 0; i-- {
		c := SequenceOrder[i]
		items[c] = makeItems(c, string(c)+"-a", string(c)+"-b")
	}
	cfg := newConfig(t, SessionDefinition{Name: "all"}, items)
	seq := NewSequencer(cfg)

	last := -1
	for _, step := range seq.Steps() {
		idx := step.Category.Index()
		assert.GreaterOrEqual(t, idx, last)
		last = idx
	}
	first, _ := seq.At(0)
	assert.Equal(t, CategoryTechnique, first.Category)
	final, _ := seq.At(seq.Total() - 1)
	assert.Equal(t, CategoryStrike, final.Category)
	assert.Equal(t, "strike-b", final.Item.Name)
}

func TestSequencer_FixedOrderKicksBeforeBlocksAndStrikes(t *testing.T) {
	cfg := newConfig(t, SessionDefinition{Name: "tail"}, map[Category][]Item{
		CategoryStrike: makeItems(CategoryStrike, "punch"),
		CategoryBlock:  makeItems(CategoryBlock, "high block"),
		CategoryKick:   makeItems(CategoryKick, "front kick"),
	})
	seq := NewSequencer(cfg)

	var got []Category
	for _, step := range seq.Steps() {
		got = append(got, step.Category)
	}
	assert.Equal(t, []Category{CategoryKick, CategoryBlock, CategoryStrike}, got)
	assert.Equal(t, 0, seq.Offset(CategoryKick))
	assert.Equal(t, 1, seq.Offset(CategoryBlock))
	assert.Equal(t, 2, seq.Offset(CategoryStrike))
}

func TestSequencer_EmptyCategoriesAreSkipped(t *testing.T) {
	cfg := newConfig(t, SessionDefinition{Name: "gaps"}, map[Category][]Item{
		CategoryExercise: makeItems(CategoryExercise, "pushups"),
		CategoryBlock:    makeItems(CategoryBlock, "low block"),
	})
	seq := NewSequencer(cfg)

	s0, ok := seq.At(0)
	require.True(t, ok)
	assert.Equal(t, CategoryExercise, s0.Category)
	s1, ok := seq.At(1)
	require.True(t, ok)
	assert.Equal(t, CategoryBlock, s1.Category)
	assert.Equal(t, 2, seq.Total())
}

func TestSequencer_RespectsOrderIndex(t *testing.T) {
	cfg := newConfig(t, SessionDefinition{Name: "reordered"}, map[Category][]Item{
		CategoryTechnique: {
			{ID: "a", Name: "A", OrderIndex: 1, Selected: true},
			{ID: "b", Name: "B", OrderIndex: 0, Selected: true},
		},
	})
	seq := NewSequencer(cfg)

	s0, _ := seq.At(0)
	s1, _ := seq.At(1)
	assert.Equal(t, "B", s0.Item.Name)
	assert.Equal(t, "A", s1.Item.Name)
	assert.Equal(t, 0, s0.Item.OrderIndex)
	assert.Equal(t, 1, s1.Item.OrderIndex)
}

func TestSequencer_CarriesTiming(t *testing.T) {
	cfg := newConfig(t, SessionDefinition{
		Name: "timed",
		Timing: map[Category]Timing{
			CategoryTechnique: {UseTimer: true, Duration: 5 * time.Second},
			CategoryKick:      {UseTimer: false, Duration: 30 * time.Second},
		},
	}, map[Category][]Item{
		CategoryTechnique: makeItems(CategoryTechnique, "jab"),
		CategoryKick:      makeItems(CategoryKick, "roundhouse"),
	})
	seq := NewSequencer(cfg)

	s0, _ := seq.At(0)
	assert.True(t, s0.UseTimer)
	assert.Equal(t, 5*time.Second, s0.Duration)
	s1, _ := seq.At(1)
	assert.False(t, s1.UseTimer)
	assert.Equal(t, 30*time.Second, s1.Duration)
}

func TestSessionConfiguration_CopiesItems(t *testing.T) {
	source := makeItems(CategoryTechnique, "jab")
	source[0].Technique = &TechniqueDetails{Aliases: []string{"jeb"}}
	cfg := newConfig(t, SessionDefinition{Name: "copy"}, map[Category][]Item{CategoryTechnique: source})

	source[0].Name = "renamed"
	source[0].Technique.Aliases[0] = "renamed"

	got := cfg.Items(CategoryTechnique)
	assert.Equal(t, "jab", got[0].Name)
	assert.Equal(t, []string{"jeb"}, got[0].Aliases())
}

func TestSessionConfiguration_Randomize(t *testing.T) {
	techniques := makeItems(CategoryTechnique, "a", "b", "c", "d", "e", "f", "g", "h")
	kicks := makeItems(CategoryKick, "k1", "k2", "k3", "k4", "k5", "k6")
	def := SessionDefinition{Name: "shuffled", RandomizeOrder: true}

	changed := false
	for seed := uint64(0); seed < 20; seed++ {
		cfg, err := NewSessionConfiguration(def, map[Category][]Item{
			CategoryTechnique: techniques,
			CategoryKick:      kicks,
		}, rand.New(rand.NewPCG(seed, seed+1)))
		require.NoError(t, err)

		got := cfg.Items(CategoryTechnique)
		gotNames := names(got)
		if !slices.Equal(gotNames, names(techniques)) {
			changed = true
		}
		sorted := slices.Clone(gotNames)
		slices.Sort(sorted)
		assert.Equal(t, names(techniques), sorted, "same set of items")
		for i, it := range got {
			assert.Equal(t, i, it.OrderIndex)
		}
		// kicks are never shuffled
		assert.Equal(t, names(kicks), names(cfg.Items(CategoryKick)))
	}
	assert.True(t, changed, "at least one seed should reorder techniques")
}

func TestSessionConfiguration_RejectsBadInput(t *testing.T) {
	_, err := NewSessionConfiguration(SessionDefinition{
		Name:   "bad",
		Timing: map[Category]Timing{CategoryKata: {UseTimer: true, Duration: -time.Second}},
	}, nil, nil)
	assert.Error(t, err)

	_, err = NewSessionConfiguration(SessionDefinition{Name: "bad"}, map[Category][]Item{
		"throw": makeItems("throw", "hip throw"),
	}, nil)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}
