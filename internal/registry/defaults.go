package registry

import "github.com/lexfuse/lexfuse/pkg/models"

// DefaultProfiles returns the built-in backend profiles. Providers with
// OpenAI-compatible APIs (Mistral, Groq) reuse the openai driver with
// their own endpoints. Credentials are resolved from the environment at
// call time via api_key_env.
func DefaultProfiles() []models.BackendProfile {
	return []models.BackendProfile{
		{
			ID:          "openai",
			DisplayName: "OpenAI GPT-4o",
			Kind:        "openai",
			Model:       "gpt-4o",
			Quality:     4.5,
			Speed:       models.SpeedStandard,
			Cost:        models.CostHigh,
			Strengths:   []string{"argumentation", "structure"},
			Config:      map[string]interface{}{"api_key_env": "OPENAI_API_KEY"},
		},
		{
			ID:          "anthropic",
			DisplayName: "Anthropic Claude",
			Kind:        "anthropic",
			Model:       "claude-sonnet-4-20250514",
			Quality:     4.5,
			Speed:       models.SpeedStandard,
			Cost:        models.CostHigh,
			Strengths:   []string{"synthese", "redaction"},
			Config:      map[string]interface{}{"api_key_env": "ANTHROPIC_API_KEY"},
		},
		{
			ID:          "mistral",
			DisplayName: "Mistral Large",
			Kind:        "openai",
			Endpoint:    "https://api.mistral.ai/v1",
			Model:       "mistral-large-latest",
			Quality:     4.0,
			Speed:       models.SpeedStandard,
			Cost:        models.CostMedium,
			Strengths:   []string{"citation", "droit-francais"},
			Config:      map[string]interface{}{"api_key_env": "MISTRAL_API_KEY"},
		},
		{
			ID:          "groq",
			DisplayName: "Groq Llama 3.3",
			Kind:        "openai",
			Endpoint:    "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			Quality:     3.5,
			Speed:       models.SpeedFast,
			Cost:        models.CostLow,
			Strengths:   []string{"vitesse"},
			Config:      map[string]interface{}{"api_key_env": "GROQ_API_KEY"},
		},
		{
			ID:          "ollama",
			DisplayName: "Ollama (local)",
			Kind:        "ollama",
			Model:       "llama3",
			Quality:     3.0,
			Speed:       models.SpeedSlow,
			Cost:        models.CostLow,
			Strengths:   []string{"confidentialite"},
		},
	}
}

// DefaultDocTypes returns the built-in document-type configurations for
// French legal documents. Section names are the normalized forms the
// extractor produces (marker stripped, lower-cased).
func DefaultDocTypes() []models.DocTypeConfig {
	return []models.DocTypeConfig{
		{
			ID:          "conclusions",
			DisplayName: "Conclusions",
			SystemPrompt: "Tu es un assistant juridique expert en droit pénal des affaires français. " +
				"Tu utilises les formules juridiques appropriées et cites la jurisprudence pertinente.",
			PromptTemplate: "Rédige des conclusions pour {{partie}} dans l'affaire suivante:\n{{affaire}}\n\n" +
				"Structure attendue: I. EXPOSÉ DES FAITS, II. DISCUSSION, PAR CES MOTIFS.",
			CanonicalSections: []string{"preamble", "exposé des faits", "discussion", "par ces motifs"},
			LengthBands: map[string]models.LengthBand{
				"exposé des faits": {Min: 150, Max: 600},
				"discussion":       {Min: 300, Max: 1200},
				"par ces motifs":   {Min: 50, Max: 300},
			},
			Keywords: []string{
				"article", "jurisprudence", "cour de cassation", "tribunal",
				"attendu", "considérant", "préjudice", "code civil", "code pénal",
			},
			SectionCapabilities: map[string][]string{
				"exposé des faits": {"synthese"},
				"discussion":       {"argumentation", "citation"},
				"par ces motifs":   {"redaction", "structure"},
			},
			SectionImportance: map[string]float64{
				"discussion":     2.0,
				"par ces motifs": 1.5,
			},
		},
		{
			ID:          "plainte",
			DisplayName: "Plainte",
			SystemPrompt: "Tu es un assistant juridique expert en droit pénal français. " +
				"Tu rédiges des plaintes adressées au Procureur de la République.",
			PromptTemplate: "Rédige une plainte pour {{plaignant}} concernant les faits suivants:\n{{faits}}",
			CanonicalSections: []string{
				"preamble", "faits", "qualification juridique", "demandes",
			},
			LengthBands: map[string]models.LengthBand{
				"faits":                   {Min: 100, Max: 500},
				"qualification juridique": {Min: 100, Max: 400},
				"demandes":                {Min: 50, Max: 200},
			},
			Keywords: []string{
				"procureur", "infraction", "article", "code pénal", "plainte",
				"préjudice", "victime",
			},
			SectionCapabilities: map[string][]string{
				"faits":                   {"synthese"},
				"qualification juridique": {"argumentation", "citation"},
				"demandes":                {"redaction"},
			},
		},
		{
			ID:          "assignation",
			DisplayName: "Assignation",
			SystemPrompt: "Tu es un assistant juridique expert en procédure civile française. " +
				"Tu rédiges des actes introductifs d'instance.",
			PromptTemplate: "Rédige une assignation devant le {{juridiction}} pour {{demandeur}} contre {{defendeur}}:\n{{objet}}",
			CanonicalSections: []string{
				"preamble", "exposé des faits", "discussion", "par ces motifs",
			},
			LengthBands: map[string]models.LengthBand{
				"exposé des faits": {Min: 100, Max: 500},
				"discussion":       {Min: 200, Max: 800},
				"par ces motifs":   {Min: 50, Max: 250},
			},
			Keywords: []string{
				"assignation", "article", "juridiction", "demandeur", "défendeur",
				"code de procédure civile", "audience",
			},
			SectionCapabilities: map[string][]string{
				"exposé des faits": {"synthese"},
				"discussion":       {"argumentation", "citation"},
				"par ces motifs":   {"redaction", "structure"},
			},
		},
	}
}
