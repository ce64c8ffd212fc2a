package tools

import (
	"context"
	"fmt"
	"strings"

	"forecast_agent/pkg/core/extract"
	"forecast_agent/pkg/core/llm"
	"forecast_agent/pkg/core/logger"
	"forecast_agent/pkg/core/prompt"
)

// DefaultTopK is how many transcript chunks are retrieved per query.
const DefaultTopK = 4

// SourceTranscripts labels qualitative findings.
const SourceTranscripts = "earnings_call_transcripts"

// Querier is the retrieval dependency of QualitativeAnalyzer.
type Querier interface {
	Query(ctx context.Context, text string, topK int) ([]string, error)
}

// QualitativeAnalysis is the payload of a successful qualitative run.
type QualitativeAnalysis struct {
	Query                 string   `json:"query"`
	Sentiment             string   `json:"sentiment,omitempty"`
	Themes                []string `json:"themes"`
	KeyStatements         []string `json:"key_statements"`
	RisksAndOpportunities []string `json:"risks_and_opportunities"`
	Analysis              string   `json:"analysis"`
	Source                string   `json:"source"`
}

// QualitativeAnalyzer answers a question about management commentary using
// retrieved transcript excerpts.
type QualitativeAnalyzer struct {
	gateway   llm.Gateway
	retriever Querier
	topK      int
}

// NewQualitativeAnalyzer wires a gateway to a retriever.
func NewQualitativeAnalyzer(gateway llm.Gateway, retriever Querier, topK int) *QualitativeAnalyzer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &QualitativeAnalyzer{gateway: gateway, retriever: retriever, topK: topK}
}

// Analyze retrieves context for query and asks the model about it. The model
// is not called when retrieval finds nothing.
func (q *QualitativeAnalyzer) Analyze(ctx context.Context, query string) Result {
	docs, err := q.retriever.Query(ctx, query, q.topK)
	if err != nil {
		return Failure(NameQualitative, fmt.Sprintf("retrieval failed: %v", err))
	}
	if len(docs) == 0 {
		return Failure(NameQualitative, "no relevant context found")
	}

	p, err := prompt.Build(prompt.IDQualitativeAnalysis, prompt.NewContext().
		Set("Context", strings.Join(docs, "\n\n")).
		Set("Query", query))
	if err != nil {
		return Failure(NameQualitative, fmt.Sprintf("failed to build prompt: %v", err))
	}

	raw, err := q.gateway.Complete(ctx, p, 0.3)
	if err != nil {
		return Failure(NameQualitative, fmt.Sprintf("model call failed: %v", err))
	}
	if strings.TrimSpace(raw) == "" {
		return Failure(NameQualitative, "empty model response")
	}

	analysis := QualitativeAnalysis{
		Query:                 query,
		Themes:                []string{},
		KeyStatements:         []string{},
		RisksAndOpportunities: []string{},
		Analysis:              raw,
		Source:                SourceTranscripts,
	}

	obj, method, ok := extract.Object(raw)
	if !ok {
		logger.Log.WithField("tool", NameQualitative).Debug("unstructured analysis kept as text")
		return Success(NameQualitative, analysis)
	}
	logger.Log.WithField("tool", NameQualitative).Debugf("analysis parsed via %s", method)

	analysis.Sentiment = strings.ToLower(extract.Stringify(obj["sentiment"]))
	analysis.Themes = extract.StringSlice(obj["themes"])
	analysis.KeyStatements = extract.StringSlice(obj["key_statements"])
	analysis.RisksAndOpportunities = extract.StringSlice(obj["risks_and_opportunities"])
	if text := extract.Stringify(obj["analysis"]); text != "" {
		analysis.Analysis = text
	}
	return Success(NameQualitative, analysis)
}

// QueryForTask picks the transcript question that best matches the task.
func QueryForTask(task string) string {
	t := strings.ToLower(task)
	switch {
	case containsWord(t, "ai") || strings.Contains(t, "artificial intelligence") || strings.Contains(t, "digital"):
		return "What is management's outlook on AI and digital transformation?"
	case strings.Contains(t, "outlook") || strings.Contains(t, "forecast"):
		return "What is management's forward-looking guidance and outlook?"
	case strings.Contains(t, "risk"):
		return "What risks and challenges did management discuss?"
	}
	return "What are the key themes and strategic focus areas discussed by management?"
}

func containsWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}
