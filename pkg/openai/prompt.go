package openai

import (
	"fmt"
	"strings"

	"github.com/formatexp/formatexp/pkg/credits"
)

const systemPrompt = `You are FormatExp, an assistant for TEACHERS.
Goal: produce classroom-ready teaching material.
Rules:
- Neutral, professional tone
- Never invent facts not present in the source text
- Clear, structured formatting`

// BuildPrompt renders the user prompt for a validated generation
// request. Presentation requests fall back to the study-guide layout;
// the outline sections double as slide content.
func BuildPrompt(req credits.GenerationRequest) string {
	var instruction string
	switch req.Type {
	case credits.MaterialTest:
		instruction = fmt.Sprintf(`Create a test based ONLY on the source text.
%s

- %d questions
- 4 options A/B/C/D each
- Mark the correct answer
- Add a short explanation per question`, difficultyGuidance(req.Difficulty), req.Questions)
	case credits.MaterialSummary:
		instruction = fmt.Sprintf(`Create a didactic summary.
%s

- 8-12 bullet points
- Key ideas
- Important terms`, difficultyGuidance(req.Difficulty))
	default:
		// Study guide; also the fallback format for presentations.
		instruction = fmt.Sprintf(`Create a study guide.
%s

1) Objectives
2) Outline
3) Key points
4) Review questions
5) Recommendations`, difficultyGuidance(req.Difficulty))
	}

	var b strings.Builder
	b.WriteString("SOURCE TEXT:\n\"\"\"\n")
	b.WriteString(req.SourceText)
	b.WriteString("\n\"\"\"\n\nTASK:\n")
	b.WriteString(instruction)
	return b.String()
}

func difficultyGuidance(d credits.Difficulty) string {
	switch d {
	case credits.DifficultyEasy:
		return "Easy difficulty. Simple language."
	case credits.DifficultyHard:
		return "High difficulty. Analysis and application."
	default:
		return "Medium difficulty. Comprehension and relating ideas."
	}
}
