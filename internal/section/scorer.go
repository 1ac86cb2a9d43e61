package section

import (
	"strings"

	"github.com/lexfuse/lexfuse/pkg/models"
)

// defaultBand is used for sections with no configured length band.
var defaultBand = models.LengthBand{Min: 40, Max: 400}

// Weights mixes the three scoring terms. They are normalized at use and
// need not sum to 1. Zero-valued weights fall back to 0.4/0.3/0.3.
type Weights struct {
	LengthFit float64
	Density   float64
	Quality   float64
}

func (w Weights) orDefault() Weights {
	if w.LengthFit <= 0 && w.Density <= 0 && w.Quality <= 0 {
		return Weights{LengthFit: 0.4, Density: 0.3, Quality: 0.3}
	}
	return w
}

// Scorer computes a scalar in [0,1] for each (backend, section) pair.
// Score is a pure function of its arguments: no state, no side effects.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w.orDefault()}
}

// Score rates one section produced by one backend as the weighted sum of
// length-fit, domain keyword density, and normalized backend quality.
func (s *Scorer) Score(profile *models.BackendProfile, docType *models.DocTypeConfig, sec *models.Section) float64 {
	band, ok := docType.LengthBands[sec.Name]
	if !ok || band.Min <= 0 || band.Max < band.Min {
		band = defaultBand
	}

	l := lengthFit(sec.WordCount(), band)
	d := keywordDensity(sec.Text, docType.Keywords)
	q := profile.QualityNorm()

	w := s.weights
	total := w.LengthFit + w.Density + w.Quality
	score := (w.LengthFit*l + w.Density*d + w.Quality*q) / total

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ScoreAll derives the full score map for every extracted section.
func (s *Scorer) ScoreAll(sections models.SectionMap, profiles map[string]*models.BackendProfile, docType *models.DocTypeConfig) models.ScoreMap {
	scores := make(models.ScoreMap, len(sections))
	for backendID, secs := range sections {
		profile := profiles[backendID]
		if profile == nil {
			continue
		}
		perSection := make(map[string]float64, len(secs))
		for i := range secs {
			perSection[secs[i].Name] = s.Score(profile, docType, &secs[i])
		}
		scores[backendID] = perSection
	}
	return scores
}

// lengthFit is a triangular function: 1.0 inside the expected band,
// falling linearly to 0 at half the band minimum and twice the band
// maximum, 0 beyond.
func lengthFit(words int, band models.LengthBand) float64 {
	wc := float64(words)
	lo := float64(band.Min)
	hi := float64(band.Max)

	switch {
	case wc >= lo && wc <= hi:
		return 1.0
	case wc < lo:
		floor := lo / 2
		if wc <= floor {
			return 0
		}
		return (wc - floor) / (lo - floor)
	default:
		ceil := hi * 2
		if wc >= ceil {
			return 0
		}
		return (ceil - wc) / (ceil - hi)
	}
}

// keywordDensity counts domain keyword occurrences per 100 words,
// capped at 1.0.
func keywordDensity(text string, keywords []string) float64 {
	words := len(strings.Fields(text))
	if words == 0 || len(keywords) == 0 {
		return 0
	}

	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		hits += strings.Count(lower, kw)
	}

	density := float64(hits) * 100 / float64(words)
	if density > 1 {
		return 1
	}
	return density
}
