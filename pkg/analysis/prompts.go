package analysis

import (
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// SinglePrompt analyzes a whole collection in one call
var SinglePrompt = prompts.NewPromptTemplate(`You are a forensic analyst examining the Twitter/X activity of @{{.username}}.

MATERIAL VOLUME: {{.count}} total tweets and retweets are provided below for analysis.

Each tweet has an INDEX number like [INDEX: 5]. Use these indices to identify tweets.

TASK 1: Write a ONE PARAGRAPH clinical summary (4-6 sentences max).
Include: volume analyzed, main topics, and any notable patterns.
Be concise and factual.

TASK 2: Identify ALL CONTROVERSIAL tweets by their INDEX number.
Look for tweets that are:
- Inflammatory, offensive, or problematic statements
- Most likely to cause public backlash or criticism
- Opinions that could be used against this person
- Content that reveals concerning views or behavior

Be thorough - flag every tweet that could be considered controversial.

RESPOND WITH VALID JSON ONLY (no markdown, no extra text):
{
  "summary": "Your clinical summary here - 4-6 sentences, factual and objective.",
  "flagged": [
    {"index": 5, "reason": "Short reason why controversial"},
    {"index": 12, "reason": "Short reason why controversial"}
  ]
}

---

TWEETS:

{{.tweets}}
`, []string{"username", "count", "tweets"})

// ChunkPrompt analyzes one chunk of a collection too large for one call
var ChunkPrompt = prompts.NewPromptTemplate(`You are a forensic analyst examining tweets from @{{.username}}.

This is CHUNK {{.chunk}} of {{.chunks}}.

Each tweet has an INDEX number like [INDEX: 5]. Use these indices to identify tweets.

TASK 1: Write a brief summary of the content in this chunk (2-3 sentences).

TASK 2: Identify ALL CONTROVERSIAL tweets by their INDEX.
Look for tweets that are:
- Inflammatory, offensive, or problematic statements
- Most likely to cause public backlash or criticism
- Opinions that could be used against this person
- Content that reveals concerning views or behavior

RESPOND WITH VALID JSON ONLY (no markdown, no extra text):
{
  "summary": "Brief summary of chunk content...",
  "flagged": [
    {"index": 5, "reason": "Short reason why controversial"},
    {"index": 12, "reason": "Short reason why controversial"}
  ]
}

Be thorough - flag every tweet that could be considered controversial.
{{.extra}}
---

TWEETS TO ANALYZE:

{{.tweets}}
`, []string{"username", "chunk", "chunks", "extra", "tweets"})

// FinalSummaryPrompt merges per-chunk summaries into one report
var FinalSummaryPrompt = prompts.NewPromptTemplate(`You are creating a FINAL FORENSIC REPORT for @{{.username}}.

MATERIAL VOLUME: {{.count}} total tweets and retweets were analyzed across {{.chunks}} chunks.

Below are the chunk summaries.

YOUR TASK:
Write a ONE PARAGRAPH clinical summary (4-6 sentences max).
State that {{.count}} tweets/retweets were analyzed, main topics, and notable patterns.
Be concise and factual.

RESPOND WITH VALID JSON ONLY:
{
  "summary": "Your clinical summary here - 4-6 sentences, factual and objective."
}

---

CHUNK SUMMARIES:

{{.summaries}}
`, []string{"username", "count", "chunks", "summaries"})

// tweetsPlaceholder is replaced in custom instructions with the formatted items
const tweetsPlaceholder = "{tweets}"

// customPrompt builds a single-call prompt from user instructions
func customPrompt(custom, formatted string) string {
	if !strings.Contains(custom, tweetsPlaceholder) {
		custom += "\n\nTweets:\n" + tweetsPlaceholder
	}
	return strings.ReplaceAll(custom, tweetsPlaceholder, formatted)
}

// extraInstructions renders custom instructions as a chunk prompt section
func extraInstructions(custom string) string {
	custom = strings.TrimSpace(custom)
	if custom == "" {
		return ""
	}
	return "\nADDITIONAL INSTRUCTIONS:\n" + custom + "\n"
}
