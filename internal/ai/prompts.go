package ai

import (
	"fmt"
	"regexp"
	"strings"
)

// SummarizePrompt asks for a short summary of text.
func SummarizePrompt(text string) string {
	return fmt.Sprintf(`Summarize the following text in two or three sentences. Reply with the summary only.

Text:
"""
%s
"""`, text)
}

// ImprovePrompt asks for a clearer rewrite of text.
func ImprovePrompt(text string) string {
	return fmt.Sprintf(`Improve the writing of the following text. Fix grammar and make it clearer and more concise while keeping its meaning and tone. Reply with the rewritten text only.

Text:
"""
%s
"""`, text)
}

// OutlinePrompt asks for a bullet outline of text.
func OutlinePrompt(text string) string {
	return fmt.Sprintf(`Create an outline for the following topic or text. Reply with one outline point per line, each starting with "- ", and nothing else.

Input:
"""
%s
"""`, text)
}

// GeneratePrompt passes a free-form instruction, with nearby text as context.
func GeneratePrompt(instruction, context string) string {
	if strings.TrimSpace(context) == "" {
		return instruction
	}
	return fmt.Sprintf(`%s

Context:
"""
%s
"""`, instruction, context)
}

var bulletPrefix = regexp.MustCompile(`^(?:[-*•+]|\d+[.)]|#{1,6})\s+`)

// OutlineItems splits a generated outline into bullet items, dropping list
// markers and blank lines. Text without line structure becomes one item.
func OutlineItems(text string) []string {
	var items []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		line = strings.Trim(line, "*_")
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}
