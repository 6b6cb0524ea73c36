package lyrics

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	t.Run("KnownStyle", func(t *testing.T) {
		prompt := BuildPrompt("trap", "", nil)
		if !strings.Contains(prompt, "trap-style") {
			t.Error("trap prompt should use the trap instruction")
		}
		if !strings.Contains(prompt, "16-32 bars") {
			t.Error("prompt should request 16-32 bars")
		}
	})

	t.Run("UnknownStyleFallsBack", func(t *testing.T) {
		prompt := BuildPrompt("polka", "", nil)
		if !strings.Contains(prompt, "creative wordplay and engaging flow") {
			t.Error("unknown style should use the default instruction")
		}
	})

	t.Run("CustomPromptAppended", func(t *testing.T) {
		prompt := BuildPrompt("drill", "mention rainy nights", nil)
		if !strings.Contains(prompt, "Additional Requirements: mention rainy nights") {
			t.Error("custom prompt missing")
		}
	})

	t.Run("UserStyleReference", func(t *testing.T) {
		ref := &StyleReference{
			Name:         "My Flow",
			Description:  "laid back",
			SampleLyrics: "sample bars here",
		}
		prompt := BuildPrompt("", "", ref)
		for _, want := range []string{"My Flow", "laid back", "sample bars here", "match this user's style"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
	})
}

func TestKnownStyle(t *testing.T) {
	for _, style := range []string{"trap", "boom_bap", "drill", "conscious", "melodic", "freestyle"} {
		if !KnownStyle(style) {
			t.Errorf("%q should be a known style", style)
		}
	}
	if KnownStyle("country") {
		t.Error("country should not be a known style")
	}
}
