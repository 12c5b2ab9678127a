package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, Distance("kick", "kick"))
	assert.Equal(t, 3, Distance("", "abc"))
	assert.Equal(t, 3, Distance("abc", ""))
	assert.Equal(t, 3, Distance("kitten", "sitting"))
	assert.Equal(t, 2, Distance("punch", "punches"))
}

func TestFindClosestMatch_ExactIgnoringCase(t *testing.T) {
	m := New(DefaultThreshold)

	got, ok := m.FindClosestName("punch", []string{"Punch", "Kick"})

	require.True(t, ok)
	assert.Equal(t, "Punch", got)
}

func TestFindClosestMatch_NothingWithinThreshold(t *testing.T) {
	m := New(5)

	_, ok := m.FindClosestName("xyz123", []string{"Punch"})

	assert.False(t, ok)
}

func TestFindClosestMatch_AliasWins(t *testing.T) {
	m := New(2)
	candidates := []Candidate{
		{Name: "Gyaku Zuki", Aliases: []string{"reverse punch"}},
		{Name: "Mae Geri", Aliases: []string{"front kick"}},
	}

	match, ok := m.FindClosestMatch("Front Kick", candidates, true)
	require.True(t, ok)
	assert.Equal(t, 1, match.Index)
	assert.Equal(t, "front kick", match.Text)
	assert.Equal(t, 0, match.Distance)

	_, ok = m.FindClosestMatch("Front Kick", candidates, false)
	assert.False(t, ok, "aliases excluded")
}

func TestFindClosestMatch_TieKeepsFirst(t *testing.T) {
	m := New(DefaultThreshold)
	candidates := []Candidate{{Name: "bat"}, {Name: "cat"}}

	match, ok := m.FindClosestMatch("hat", candidates, true)

	require.True(t, ok)
	assert.Equal(t, 0, match.Index)
	assert.Equal(t, 1, match.Distance)
}

func TestFindClosestMatch_CollapsesWhitespace(t *testing.T) {
	m := New(0)

	got, ok := m.FindClosestName("  front   kick ", []string{"Front Kick"})

	require.True(t, ok)
	assert.Equal(t, "Front Kick", got)
}

func TestNew_NegativeThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, New(-1).Threshold)
	assert.Equal(t, 0, New(0).Threshold)
}
