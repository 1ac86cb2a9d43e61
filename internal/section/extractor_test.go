package section_test

import (
	"strings"
	"testing"

	"github.com/lexfuse/lexfuse/internal/section"
	"github.com/lexfuse/lexfuse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(secs []models.Section) []string {
	out := make([]string, len(secs))
	for i, s := range secs {
		out[i] = s.Name
	}
	return out
}

func TestExtract_NoHeadingsFallsBackToBody(t *testing.T) {
	raw := "Un paragraphe sans structure.\n\nUn second paragraphe, toujours sans titres."

	secs := section.Extract(raw)

	require.Len(t, secs, 1)
	assert.Equal(t, section.BodySection, secs[0].Name)
	// Byte for byte: downstream strategies may return this text verbatim.
	assert.Equal(t, raw, secs[0].Text)
}

func TestExtract_NumericHeadings(t *testing.T) {
	raw := strings.Join([]string{
		"1. Exposé des faits",
		"La société X a conclu un contrat.",
		"2. Discussion",
		"Le contrat est nul.",
	}, "\n")

	secs := section.Extract(raw)

	require.Equal(t, []string{"exposé des faits", "discussion"}, names(secs))
	assert.Equal(t, "La société X a conclu un contrat.", secs[0].Text)
	assert.Equal(t, "1. Exposé des faits", secs[0].Heading)
}

func TestExtract_RomanHeadings(t *testing.T) {
	raw := strings.Join([]string{
		"I. EXPOSÉ DES FAITS",
		"Les faits sont les suivants.",
		"II. DISCUSSION",
		"En droit, il résulte que...",
	}, "\n")

	secs := section.Extract(raw)
	require.Equal(t, []string{"exposé des faits", "discussion"}, names(secs))
}

func TestExtract_LetteredHeadings(t *testing.T) {
	raw := strings.Join([]string{
		"A) Sur la recevabilité",
		"La demande est recevable.",
		"B) Sur le fond",
		"Au fond, la demande est justifiée.",
	}, "\n")

	secs := section.Extract(raw)
	require.Equal(t, []string{"sur la recevabilité", "sur le fond"}, names(secs))
}

func TestExtract_AllCapsHeading(t *testing.T) {
	raw := strings.Join([]string{
		"PAR CES MOTIFS",
		"Plaise au tribunal de condamner le défendeur.",
	}, "\n")

	secs := section.Extract(raw)
	require.Equal(t, []string{"par ces motifs"}, names(secs))
}

func TestExtract_PreambleBeforeFirstHeading(t *testing.T) {
	raw := strings.Join([]string{
		"POUR: La société Demanderesse",
		"CONTRE: La société Défenderesse",
		"",
		"I. Exposé des faits",
		"Les faits.",
	}, "\n")

	// Mixed-case party lines are not headings and stay in the preamble.
	secs := section.Extract(raw)

	require.Equal(t, []string{section.PreambleSection, "exposé des faits"}, names(secs))
	assert.Contains(t, secs[0].Text, "POUR: La société Demanderesse")
	assert.Empty(t, secs[0].Heading)
}

func TestExtract_NoEmptyPreamble(t *testing.T) {
	raw := strings.Join([]string{
		"",
		"  ",
		"1. Faits",
		"Le contenu.",
	}, "\n")

	secs := section.Extract(raw)
	require.Equal(t, []string{"faits"}, names(secs))
}

func TestExtract_QuotedCitationIsNotAHeading(t *testing.T) {
	raw := strings.Join([]string{
		"I. Discussion",
		"La Cour de cassation a jugé que:",
		"1. Toute personne a droit au respect de sa vie privée et familiale, de son domicile et de sa correspondance.",
		"Cette jurisprudence s'applique ici.",
	}, "\n")

	// The quoted article starts with a numeric marker but is too long and
	// ends in a period; it must stay inside the discussion.
	secs := section.Extract(raw)

	require.Equal(t, []string{"discussion"}, names(secs))
	assert.Contains(t, secs[0].Text, "vie privée")
}

func TestExtract_ShortQuotedLineEndingInPunctuation(t *testing.T) {
	raw := strings.Join([]string{
		"I. Discussion",
		"II. est un marqueur cité dans le texte:",
		"la suite du raisonnement.",
	}, "\n")

	secs := section.Extract(raw)
	require.Equal(t, []string{"discussion"}, names(secs))
}

func TestExtract_DuplicateHeadingsMerge(t *testing.T) {
	raw := strings.Join([]string{
		"I. Discussion",
		"Premier développement.",
		"II. Demandes",
		"Les demandes.",
		"I. Discussion",
		"Second développement.",
	}, "\n")

	secs := section.Extract(raw)

	require.Equal(t, []string{"discussion", "demandes"}, names(secs))
	assert.Equal(t, "Premier développement.\nSecond développement.", secs[0].Text)
}

func TestExtract_AccentedAllCaps(t *testing.T) {
	raw := strings.Join([]string{
		"EXPOSÉ DES FAITS",
		"Les faits détaillés.",
	}, "\n")

	secs := section.Extract(raw)
	require.Equal(t, []string{"exposé des faits"}, names(secs))
}

func TestExtract_MaxHeadingWordsGuard(t *testing.T) {
	e := section.NewExtractor(section.ExtractorConfig{MaxHeadingWords: 3})

	raw := strings.Join([]string{
		"I. FAITS",
		"Contenu.",
		"II. UNE LIGNE BEAUCOUP TROP LONGUE POUR UN TITRE",
		"Suite.",
	}, "\n")

	secs := e.Extract(raw)

	require.Equal(t, []string{"faits"}, names(secs))
	assert.Contains(t, secs[0].Text, "UNE LIGNE BEAUCOUP TROP LONGUE")
}

func TestSection_Render(t *testing.T) {
	withHeading := models.Section{Name: "faits", Heading: "I. FAITS", Text: "Le contenu."}
	assert.Equal(t, "I. FAITS\nLe contenu.", withHeading.Render())

	implicit := models.Section{Name: section.BodySection, Text: "Tout le texte."}
	assert.Equal(t, "Tout le texte.", implicit.Render())
}
