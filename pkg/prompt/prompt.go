package prompt

import (
	"fmt"
	"strings"

	"github.com/nvale/orgchat/internal/models"
)

// Config bounds the assembled prompt. MaxContextTokens is an estimate-based
// budget; the instruction and the query itself are never truncated.
type Config struct {
	MaxHistoryTurns  int
	MaxContextTokens int
}

// Formatter assembles a grounded prompt from retrieved chunks, recent
// conversation history and the new query.
type Formatter struct {
	config Config
}

func NewWithConfig(config Config) *Formatter {
	if config.MaxHistoryTurns <= 0 {
		config.MaxHistoryTurns = 10
	}
	if config.MaxContextTokens <= 0 {
		config.MaxContextTokens = 2000
	}
	return &Formatter{config: config}
}

const systemPrompt = `You are a helpful assistant answering questions about an organization using only the text retrieved from its own website.

Your answers must:
1. Be based ONLY on the provided context passages
2. Cite passages by their source tag (e.g. [S1]) when possible
3. Say you do not have enough information when the context does not cover the question
4. Be concise, accurate and factual

You must NOT invent information that is not in the context, and you must not answer from general knowledge.`

// Format builds the prompt. When the token budget is exceeded it drops the
// oldest history turns first, then the lowest-ranked chunks, and keeps the
// instruction and query untouched.
func (f *Formatter) Format(query string, results []models.ScoredChunk, history []models.Turn, organization string) models.Prompt {
	if organization == "" {
		organization = "this organization"
	}

	if len(history) > f.config.MaxHistoryTurns {
		history = history[len(history)-f.config.MaxHistoryTurns:]
	}
	chunks := make([]models.ScoredChunk, len(results))
	copy(chunks, results)

	budget := f.config.MaxContextTokens
	used := func() int {
		total := 0
		for _, sc := range chunks {
			total += estimateTokens(sc.Chunk.Text)
		}
		for _, turn := range history {
			total += estimateTokens(turn.Query) + estimateTokens(turn.Answer)
		}
		return total
	}
	for used() > budget {
		if len(history) > 0 {
			history = history[1:]
			continue
		}
		if len(chunks) > 1 {
			chunks = chunks[:len(chunks)-1]
			continue
		}
		break
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following context about %s, answer this question: %s\n", organization, query)

	b.WriteString("\nCONTEXT:\n")
	for i, sc := range chunks {
		fmt.Fprintf(&b, "[S%d] %s\n\n", i+1, strings.TrimSpace(sc.Chunk.Text))
	}

	if len(history) > 0 {
		b.WriteString("CONVERSATION SO FAR:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", turn.Query, turn.Answer)
		}
		b.WriteString("\n")
	}

	b.WriteString("ANSWER:")

	return models.Prompt{System: systemPrompt, User: b.String()}
}

// Fallback is the canned answer used when no retrieved passage clears the
// similarity threshold.
func (f *Formatter) Fallback(query, organization string) string {
	if organization == "" {
		organization = "this organization"
	}
	return fmt.Sprintf(`I don't have enough information from %s's website to answer: %s

You might want to:
1. Visit their website directly
2. Contact them for more specific information
3. Try a different question`, organization, query)
}

// estimateTokens approximates token count from word count (roughly 0.75
// words per token).
func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return words * 4 / 3
}
