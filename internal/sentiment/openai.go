package sentiment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAI is an Analyzer backed by a chat model.
type OpenAI struct {
	client *openai.Client
	logger *zap.Logger
	model  string
}

// NewOpenAI creates an OpenAI-backed analyzer.
func NewOpenAI(apiKey, model string, logger *zap.Logger) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client: openai.NewClient(apiKey),
		logger: logger,
		model:  model,
	}
}

// AnalyzeBatch scores every ticket in one completion call.
func (o *OpenAI) AnalyzeBatch(ctx context.Context, inputs []Input) ([]int, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You score customer satisfaction for support tickets. For each ticket, output a line \"<index>|<score>\" where score is an integer 0-100 (100 = fully satisfied / neutral, 0 = extremely dissatisfied). Output nothing else.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(inputs),
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model")
	}

	scores, err := parseScores(resp.Choices[0].Message.Content, len(inputs))
	if err != nil {
		return nil, fmt.Errorf("failed to parse sentiment response: %w", err)
	}

	o.logger.Debug("scored ticket batch", zap.Int("tickets", len(inputs)))
	return scores, nil
}

func buildPrompt(inputs []Input) string {
	var sb strings.Builder
	sb.WriteString("Score the following tickets:\n\n")
	for i, in := range inputs {
		sb.WriteString(fmt.Sprintf("Ticket %d\n", i))
		sb.WriteString("Title: " + in.Title + "\n")
		if in.Body != "" {
			sb.WriteString("Body: " + in.Body + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func parseScores(response string, want int) ([]int, error) {
	scores := make([]int, want)
	for i := range scores {
		scores[i] = DefaultScore
	}

	seen := 0
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idxPart, scorePart, found := strings.Cut(line, "|")
		if !found {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSpace(idxPart))
		if err != nil || idx < 0 || idx >= want {
			continue
		}
		score, err := strconv.Atoi(strings.TrimSpace(scorePart))
		if err != nil {
			continue
		}
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		scores[idx] = score
		seen++
	}

	if seen == 0 {
		return nil, fmt.Errorf("no scores in model output")
	}
	return scores, nil
}
