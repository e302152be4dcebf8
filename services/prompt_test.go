package services

import (
	"strings"
	"testing"
	"time"
)

func TestComposePromptDocumentSource(t *testing.T) {
	now := time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)
	prompt := ComposePrompt("What was Q4 revenue?", "[File: report.pdf]\nRevenue was $10M.", SourceDocument, now)

	for _, want := range []string{
		"You are FinRAG",
		"TODAY'S DATE: March 2025",
		"SOURCE TYPE: DOCUMENT",
		"CONTEXT (document):",
		"[File: report.pdf]",
		"USER QUESTION: What was Q4 revenue?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestComposePromptSourceTypeCasing(t *testing.T) {
	now := time.Now()

	web := ComposePrompt("q", "ctx", SourceWeb, now)
	if !strings.Contains(web, "SOURCE TYPE: WEB") {
		t.Error("header should carry the uppercased source type")
	}
	if !strings.Contains(web, "CONTEXT (web):") {
		t.Error("context banner should keep the lowercase source type")
	}

	none := ComposePrompt("q", "", SourceNone, now)
	if !strings.Contains(none, "SOURCE TYPE: NONE") {
		t.Error("none source should be tagged NONE")
	}
	if !strings.Contains(none, "CONTEXT (none):\n\n") {
		t.Error("none source should carry an empty context block")
	}
}

func TestComposePromptCarriesModeRules(t *testing.T) {
	prompt := ComposePrompt("q", "ctx", SourceDocument, time.Now())

	for _, rule := range []string{
		"IF SOURCE = 'DOCUMENT'",
		"IF SOURCE = 'WEB'",
		"IF SOURCE = 'NONE'",
		"Information not found in the document.",
		"Based on web search results...",
		"LANGUAGE RULE",
	} {
		if !strings.Contains(prompt, rule) {
			t.Errorf("prompt missing rule fragment %q", rule)
		}
	}
}
