package analysis

import (
	"fmt"
	"strings"
)

// recordSeparator joins formatted items in a prompt
const recordSeparator = "\n---\n"

// itemOverhead approximates the formatting added around each item's text
const itemOverhead = 100

// FormatItem renders one item as a prompt record
func FormatItem(it Item) string {
	if it.IsRepost {
		author := it.OriginalAuthor
		if author == "" {
			author = "unknown"
		}
		return fmt.Sprintf("[INDEX: %d] [RETWEET of @%s] [%s] %s", it.Index, author, it.Date, it.Text)
	}
	return fmt.Sprintf("[INDEX: %d] [%s] %s", it.Index, it.Date, it.Text)
}

// FormatItems renders items as prompt records
func FormatItems(items []Item) string {
	records := make([]string, len(items))
	for i, it := range items {
		records[i] = FormatItem(it)
	}
	return strings.Join(records, recordSeparator)
}

// EstimateSize returns the character budget an item consumes
func EstimateSize(it Item) int {
	return len(it.Text) + itemOverhead
}

// Split packs items greedily into contiguous chunks of at most budget
// characters. An item larger than the budget gets a chunk of its own.
func Split(items []Item, budget int) [][]Item {
	if len(items) == 0 {
		return nil
	}

	total := 0
	for _, it := range items {
		total += EstimateSize(it)
	}
	if total <= budget {
		return [][]Item{items}
	}

	var (
		chunks  [][]Item
		current []Item
		size    int
	)
	for _, it := range items {
		s := EstimateSize(it)
		if size+s > budget && len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
			size = 0
		}
		current = append(current, it)
		size += s
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
