package skills

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt appends the matched skills' guidance to a base system
// prompt. No matches returns base unchanged.
func BuildSystemPrompt(base string, matches []Match) string {
	if len(matches) == 0 {
		return base
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\n# Active Skills\n")
	sb.WriteString("The following skills were matched to the current message. Apply their guidance.\n")

	for _, m := range matches {
		parsed := ParseContent(m.Skill.Content)
		fmt.Fprintf(&sb, "\n## %s\n", m.Skill.Name)
		if m.Skill.Description != "" {
			fmt.Fprintf(&sb, "%s\n", m.Skill.Description)
		}
		if parsed.Overview != "" {
			fmt.Fprintf(&sb, "\nOverview: %s\n", parsed.Overview)
		}
		if len(parsed.Capabilities) > 0 {
			sb.WriteString("\nCapabilities:\n")
			for _, c := range parsed.Capabilities {
				fmt.Fprintf(&sb, "- %s\n", c)
			}
		}
		if len(parsed.Dos) > 0 {
			sb.WriteString("\nDO:\n")
			for _, d := range parsed.Dos {
				fmt.Fprintf(&sb, "- %s\n", d)
			}
		}
		if len(parsed.Donts) > 0 {
			sb.WriteString("\nDON'T:\n")
			for _, d := range parsed.Donts {
				fmt.Fprintf(&sb, "- %s\n", d)
			}
		}
	}

	sb.WriteString("\nFollow the DO and DON'T guidance above. Prefer skill-specific knowledge over generic answers when a skill covers the question.\n")
	return sb.String()
}
