package lyrics

import (
	"fmt"
	"strings"
)

// systemMessage frames every lyric generation request
const systemMessage = "You are a professional rap lyricist and songwriter. " +
	"You create original, creative rap lyrics in various styles. You understand " +
	"different rap genres like trap, boom bap, drill, conscious rap, and more. " +
	"You can adapt to different flows, rhyme schemes, and themes."

// stylePrompts maps each predefined style to its generation instruction
var stylePrompts = map[string]string{
	"trap":      "Create trap-style rap lyrics with modern slang, references to success, money, and lifestyle. Use a confident, boastful tone with catchy hooks.",
	"boom_bap":  "Write old-school boom bap rap lyrics with clever wordplay, storytelling, and conscious themes. Focus on lyrical complexity and meaningful content.",
	"drill":     "Generate drill rap lyrics with dark, aggressive themes and street narratives. Use hard-hitting, direct language and repetitive hooks.",
	"conscious": "Create conscious rap lyrics that address social issues, personal growth, and meaningful topics. Use thoughtful, reflective language.",
	"melodic":   "Write melodic rap lyrics that flow smoothly with singing elements. Focus on catchy melodies and emotional themes.",
	"freestyle": "Generate freestyle rap lyrics with creative wordplay, metaphors, and spontaneous flow. Mix different themes and showcase lyrical skill.",
}

const defaultPrompt = "Create original rap lyrics with creative wordplay and engaging flow."

// StyleReference is a user-defined style profile folded into the prompt
type StyleReference struct {
	Name         string
	Description  string
	SampleLyrics string
}

// BuildPrompt assembles the generation prompt for a style, an optional
// custom instruction and an optional user style reference.
func BuildPrompt(style, customPrompt string, ref *StyleReference) string {
	var b strings.Builder

	base, ok := stylePrompts[style]
	if !ok {
		base = defaultPrompt
	}
	b.WriteString(base)

	if customPrompt != "" {
		fmt.Fprintf(&b, "\n\nAdditional Requirements: %s", customPrompt)
	}

	if ref != nil {
		fmt.Fprintf(&b, "\n\nUser's Style Reference:\nName: %s\nDescription: %s\nSample: %s\n\nCreate lyrics that match this user's style and flow.",
			ref.Name, ref.Description, ref.SampleLyrics)
	}

	b.WriteString("\n\nGenerate 16-32 bars of original rap lyrics. Include natural pauses and flow markers. Make it ready for recording.")
	return b.String()
}

// KnownStyle reports whether a style has a dedicated prompt
func KnownStyle(style string) bool {
	_, ok := stylePrompts[style]
	return ok
}
