package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/prompts"

	"hyperdrive/pkg/config"
	"hyperdrive/pkg/logger"
)

// Generator is an opaque text-completion service
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Default sizing
const (
	DefaultMaxTokensPerChunk = 750_000
	DefaultCharsPerToken     = 4
)

// NoContentSummary is reported for an empty collection
const NoContentSummary = "No tweets to analyze."

// Options configures a Chunker
type Options struct {
	MaxTokensPerChunk int
	CharsPerToken     int
	// CallTimeout bounds each completion call; zero means no bound
	CallTimeout time.Duration
	Logger      logger.Logger
}

// OptionsFromConfig builds Options from the analysis section
func OptionsFromConfig(cfg *config.AnalysisConfig) Options {
	return Options{
		MaxTokensPerChunk: cfg.MaxTokensPerChunk,
		CharsPerToken:     cfg.CharsPerToken,
		CallTimeout:       cfg.CallTimeout,
	}
}

// Result is the merged outcome of all completion calls for a collection
type Result struct {
	Summary         string `json:"summary"`
	Flags           []Flag `json:"flagged"`
	ChunksProcessed int    `json:"chunks_processed"`
	Calls           int    `json:"calls"`
	Err             string `json:"error,omitempty"`
}

// Chunker splits a collection to fit the completion service's input budget
// and merges the per-chunk answers.
type Chunker struct {
	gen    Generator
	opts   Options
	logger logger.Logger
}

// NewChunker creates a Chunker
func NewChunker(gen Generator, opts Options) *Chunker {
	if opts.MaxTokensPerChunk <= 0 {
		opts.MaxTokensPerChunk = DefaultMaxTokensPerChunk
	}
	if opts.CharsPerToken <= 0 {
		opts.CharsPerToken = DefaultCharsPerToken
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Chunker{gen: gen, opts: opts, logger: log.WithField("component", "analysis")}
}

// Budget returns the chunk size limit in characters
func (c *Chunker) Budget() int {
	return c.opts.MaxTokensPerChunk * c.opts.CharsPerToken
}

// Analyze summarizes items and collects flags. label names the analyzed
// account. custom replaces the single-call prompt, or is appended to each
// chunk prompt. Completion failures are reported in the Result; the returned
// error is non-nil only when ctx ends.
func (c *Chunker) Analyze(ctx context.Context, items []Item, label, custom string) (*Result, error) {
	if len(items) == 0 {
		return &Result{Summary: NoContentSummary, Flags: []Flag{}, Err: "No content"}, nil
	}

	chunks := Split(items, c.Budget())
	log := c.logger.WithFields(map[string]interface{}{
		"account": label,
		"items":   len(items),
		"chunks":  len(chunks),
	})
	timer := logger.StartTimer(log, "analysis")
	defer timer.Stop()

	var res *Result
	if len(chunks) == 1 {
		log.Info("single-call analysis")
		res = c.analyzeSingle(ctx, items, label, custom)
	} else {
		log.Info("multi-chunk analysis")
		res = c.analyzeChunks(ctx, chunks, len(items), label, custom)
	}
	if dropped := keepKnownFlags(res, items); dropped > 0 {
		log.WarnWithFields("dropped flags with unknown index", map[string]interface{}{"dropped": dropped})
	}

	log.InfoWithFields("analysis complete", map[string]interface{}{
		"flagged": len(res.Flags),
		"calls":   res.Calls,
		"error":   res.Err,
	})
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// keepKnownFlags removes flags whose index names none of items and returns how
// many were removed. Repeated flags for one item are kept.
func keepKnownFlags(res *Result, items []Item) int {
	known := make(map[int]struct{}, len(items))
	for _, it := range items {
		known[it.Index] = struct{}{}
	}
	kept := res.Flags[:0]
	for _, f := range res.Flags {
		if _, ok := known[f.Index]; ok {
			kept = append(kept, f)
		}
	}
	dropped := len(res.Flags) - len(kept)
	res.Flags = kept
	return dropped
}

func (c *Chunker) analyzeSingle(ctx context.Context, items []Item, label, custom string) *Result {
	res := &Result{Flags: []Flag{}, ChunksProcessed: 1}
	formatted := FormatItems(items)

	var prompt string
	if strings.TrimSpace(custom) != "" {
		prompt = customPrompt(custom, formatted)
	} else {
		p, err := render(SinglePrompt, map[string]any{
			"username": label,
			"count":    len(items),
			"tweets":   formatted,
		})
		if err != nil {
			res.Err = err.Error()
			return res
		}
		prompt = p
	}

	res.Calls++
	text, err := c.generate(ctx, prompt)
	if err != nil {
		res.Err = fmt.Sprintf("completion error: %v", err)
		return res
	}
	if strings.TrimSpace(text) == "" {
		res.Summary = "Unable to generate analysis."
		res.Err = "Empty response"
		return res
	}

	parsed := ParseResponse(text)
	if parsed.Fallback {
		c.logger.WarnWithFields("response was not JSON", map[string]interface{}{"preview": preview(text)})
	}
	res.Summary = parsed.Summary
	res.Flags = parsed.Flags
	return res
}

func (c *Chunker) analyzeChunks(ctx context.Context, chunks [][]Item, total int, label, custom string) *Result {
	res := &Result{Flags: []Flag{}}
	summaries := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		n := i + 1
		summary, flags, called := c.analyzeChunk(ctx, chunk, n, len(chunks), label, custom)
		if called {
			res.Calls++
		}
		summaries = append(summaries, summary)
		res.Flags = append(res.Flags, flags...)
		res.ChunksProcessed++
	}

	lines := make([]string, len(summaries))
	for i, s := range summaries {
		lines[i] = fmt.Sprintf("Chunk %d: %s", i+1, s)
	}
	prompt, err := render(FinalSummaryPrompt, map[string]any{
		"username":  label,
		"count":     total,
		"chunks":    len(chunks),
		"summaries": strings.Join(lines, "\n\n"),
	})
	if err != nil {
		res.Summary = fmt.Sprintf("Summary error: %v", err)
		return res
	}

	res.Calls++
	text, err := c.generate(ctx, prompt)
	switch {
	case err != nil:
		res.Summary = fmt.Sprintf("Summary error: %v", err)
	case strings.TrimSpace(text) == "":
		res.Summary = "Unable to generate summary."
	default:
		parsed := ParseResponse(text)
		res.Summary = parsed.Summary
		if res.Summary == "" {
			res.Summary = strings.TrimSpace(text)
		}
	}
	return res
}

// analyzeChunk returns the chunk summary, its flags and whether a call was made
func (c *Chunker) analyzeChunk(ctx context.Context, chunk []Item, n, total int, label, custom string) (string, []Flag, bool) {
	prompt, err := render(ChunkPrompt, map[string]any{
		"username": label,
		"chunk":    n,
		"chunks":   total,
		"extra":    extraInstructions(custom),
		"tweets":   FormatItems(chunk),
	})
	if err != nil {
		return fmt.Sprintf("[Chunk %d error: %v]", n, err), nil, false
	}

	c.logger.InfoWithFields("analyzing chunk", map[string]interface{}{
		"chunk": fmt.Sprintf("%d/%d", n, total),
		"items": len(chunk),
	})

	text, err := c.generate(ctx, prompt)
	if err != nil {
		c.logger.WithError(err).ErrorWithFields("chunk failed", map[string]interface{}{"chunk": n})
		return fmt.Sprintf("[Chunk %d error: %v]", n, err), nil, true
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Sprintf("[Chunk %d failed]", n), nil, true
	}

	parsed := ParseResponse(text)
	return parsed.Summary, parsed.Flags, true
}

func (c *Chunker) generate(ctx context.Context, prompt string) (string, error) {
	if c.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}
	return c.gen.Generate(ctx, prompt)
}

func render(t prompts.PromptTemplate, values map[string]any) (string, error) {
	out, err := t.Format(values)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return out, nil
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
