package section_test

import (
	"strings"
	"testing"

	"github.com/lexfuse/lexfuse/internal/section"
	"github.com/lexfuse/lexfuse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocType() *models.DocTypeConfig {
	return &models.DocTypeConfig{
		ID: "conclusions",
		LengthBands: map[string]models.LengthBand{
			"discussion": {Min: 10, Max: 50},
		},
		Keywords: []string{"article", "jurisprudence"},
	}
}

func wordsOf(n int) string {
	return strings.TrimSpace(strings.Repeat("mot ", n))
}

func TestScore_InBandFullLengthFit(t *testing.T) {
	s := section.NewScorer(section.Weights{LengthFit: 1})
	sec := &models.Section{Name: "discussion", Text: wordsOf(30)}
	profile := &models.BackendProfile{ID: "a", Quality: 5}

	got := s.Score(profile, testDocType(), sec)
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestScore_LengthFitDecaysLinearly(t *testing.T) {
	s := section.NewScorer(section.Weights{LengthFit: 1})
	profile := &models.BackendProfile{ID: "a"}
	docType := testDocType()

	// Band is [10,50]: zero at 5 and below, zero at 100 and above.
	tooShort := &models.Section{Name: "discussion", Text: wordsOf(5)}
	assert.InDelta(t, 0.0, s.Score(profile, docType, tooShort), 1e-9)

	tooLong := &models.Section{Name: "discussion", Text: wordsOf(100)}
	assert.InDelta(t, 0.0, s.Score(profile, docType, tooLong), 1e-9)

	halfway := &models.Section{Name: "discussion", Text: wordsOf(75)}
	assert.InDelta(t, 0.5, s.Score(profile, docType, halfway), 1e-9)
}

func TestScore_KeywordDensity(t *testing.T) {
	s := section.NewScorer(section.Weights{Density: 1})
	profile := &models.BackendProfile{ID: "a"}
	docType := testDocType()

	// 2 keyword hits in 100 words → density 2.0, capped at 1.0.
	text := "article jurisprudence " + wordsOf(98)
	dense := &models.Section{Name: "discussion", Text: text}
	assert.InDelta(t, 1.0, s.Score(profile, docType, dense), 1e-9)

	barren := &models.Section{Name: "discussion", Text: wordsOf(100)}
	assert.InDelta(t, 0.0, s.Score(profile, docType, barren), 1e-9)
}

func TestScore_QualityTerm(t *testing.T) {
	s := section.NewScorer(section.Weights{Quality: 1})
	docType := testDocType()
	sec := &models.Section{Name: "discussion", Text: wordsOf(30)}

	strong := &models.BackendProfile{ID: "a", Quality: 5}
	weak := &models.BackendProfile{ID: "b", Quality: 2.5}

	assert.InDelta(t, 1.0, s.Score(strong, docType, sec), 1e-9)
	assert.InDelta(t, 0.5, s.Score(weak, docType, sec), 1e-9)
}

func TestScore_WeightsNormalized(t *testing.T) {
	// Non-unit weights must give the same result as their scaled form.
	a := section.NewScorer(section.Weights{LengthFit: 4, Density: 3, Quality: 3})
	b := section.NewScorer(section.Weights{LengthFit: 0.4, Density: 0.3, Quality: 0.3})

	profile := &models.BackendProfile{ID: "a", Quality: 4}
	docType := testDocType()
	sec := &models.Section{Name: "discussion", Text: "article " + wordsOf(29)}

	assert.InDelta(t, b.Score(profile, docType, sec), a.Score(profile, docType, sec), 1e-9)
}

func TestScore_PureAndRepeatable(t *testing.T) {
	s := section.NewScorer(section.Weights{})
	profile := &models.BackendProfile{ID: "a", Quality: 3.5}
	docType := testDocType()
	sec := &models.Section{Name: "discussion", Text: "article " + wordsOf(20)}

	first := s.Score(profile, docType, sec)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Score(profile, docType, sec))
	}
	assert.GreaterOrEqual(t, first, 0.0)
	assert.LessOrEqual(t, first, 1.0)
}

func TestScore_UnknownSectionUsesDefaultBand(t *testing.T) {
	s := section.NewScorer(section.Weights{LengthFit: 1})
	profile := &models.BackendProfile{ID: "a"}
	docType := testDocType()

	// Default band is [40,400].
	sec := &models.Section{Name: "inconnu", Text: wordsOf(100)}
	assert.InDelta(t, 1.0, s.Score(profile, docType, sec), 1e-9)
}

func TestScoreAll(t *testing.T) {
	s := section.NewScorer(section.Weights{})
	docType := testDocType()
	profiles := map[string]*models.BackendProfile{
		"a": {ID: "a", Quality: 4},
		"b": {ID: "b", Quality: 3},
	}
	sections := models.SectionMap{
		"a": {{Name: "discussion", Text: wordsOf(30)}},
		"b": {{Name: "discussion", Text: wordsOf(20)}, {Name: "demandes", Text: wordsOf(60)}},
	}

	scores := s.ScoreAll(sections, profiles, docType)

	require.Contains(t, scores, "a")
	require.Contains(t, scores, "b")
	assert.Len(t, scores["b"], 2)
	assert.Greater(t, scores.Get("a", "discussion"), 0.0)
	assert.Equal(t, 0.0, scores.Get("ghost", "discussion"))
}
