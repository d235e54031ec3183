package service

import "go-leaf-relay/internal/anthropic"

const (
	// AnalysisModel is the upstream model used for every analysis.
	AnalysisModel = "claude-3-5-sonnet-20240620"
	// AnalysisMaxTokens caps the length of the upstream answer.
	AnalysisMaxTokens = 1000
)

// AnalysisPrompt is sent after the image in every request.
const AnalysisPrompt = `Analyze this leaf image in detail.
Identify:
1. Plant species (if possible)
2. Specific disease or health condition
3. Detailed symptoms
4. Potential causes
5. Recommended treatment or management strategies

Provide a comprehensive and clear explanation.`

// BuildMessagesRequest shapes the upstream request. Only the image varies between calls.
func BuildMessagesRequest(mediaType, data string) *anthropic.MessagesRequest {
	return &anthropic.MessagesRequest{
		Model:     AnalysisModel,
		MaxTokens: AnalysisMaxTokens,
		Messages: []anthropic.Message{
			{
				Role: "user",
				Content: []anthropic.ContentBlock{
					anthropic.NewImageBlock(mediaType, data),
					anthropic.NewTextBlock(AnalysisPrompt),
				},
			},
		},
	}
}
