package prompt

const synthesisSystem = `You are a Financial Forecasting AI Agent.

Your role is to:
1. Read the quantitative metrics extracted from quarterly financial reports
2. Read the qualitative insights drawn from earnings call transcripts
3. Take current market data into account when it is available
4. Synthesize everything into a structured, forward-looking business outlook

Analysis Framework:
1. ANALYZE: Identify trends, patterns, and anomalies in the data
2. SYNTHESIZE: Combine quantitative and qualitative findings
3. FORECAST: Generate a forward-looking outlook with reasoning

Some data sources may be marked unavailable. Work with what is present and lower
your confidence accordingly. Be analytical and evidence-based.`

const synthesisUser = `Based on the following data about {{.Company}}, generate a comprehensive forecast.

Task: {{.Task}}

Available Data:
{{.Context}}

Return a single JSON object with exactly these fields:
- "summary": 2-3 sentence executive summary (string)
- "financial_trends": list of strings, one per trend, naming the metric, its direction and the percentage change
- "management_outlook": object whose values are strings, with keys such as "sentiment", "key_statements" and "strategic_focus"
- "risks_and_opportunities": list of strings, each starting with "Risk:" or "Opportunity:" and ending with the potential impact (high/medium/low)
- "quarterly_forecast": detailed forecast for the next quarter (string)
- "confidence_level": one of "high", "medium", "low"
- "data_sources_used": exactly {{.Sources}}

The object must validate against this JSON Schema:
{{.Schema}}

Return ONLY the JSON object, no other text.`

const extractionSystem = `You are a financial analyst expert. Extract key financial metrics from the provided quarterly report text.
Be precise and extract only factual numbers mentioned in the report.`

const extractionUser = `Report Text:
{{.ReportText}}

Extract the following information and return ONLY a valid JSON object:
{
    "quarter": "Q1/Q2/Q3/Q4",
    "year": 2024,
    "total_revenue": amount in crores,
    "net_profit": amount in crores,
    "operating_margin": percentage,
    "revenue_growth": percentage compared to previous quarter or year,
    "key_highlights": ["highlight1", "highlight2"],
    "segment_performance": {"segment_name": "brief description"}
}

If any value is not found, use null.

JSON Output:`

const qualitativeSystem = `You analyze earnings call transcripts. Answer only from the excerpts you are given.`

const qualitativeUser = `Transcript excerpts:
{{.Context}}

Based on the earnings call transcripts, answer this query:
{{.Query}}

Provide:
1. Direct quotes or paraphrased statements from management
2. Overall sentiment (positive/negative/neutral)
3. Key themes and strategic focus areas
4. Any risks or opportunities mentioned

Format as JSON with the keys "sentiment", "themes", "key_statements", "risks_and_opportunities" and "analysis".`

func registerBuiltins(r *Registry) {
	builtins := []*PromptTemplate{
		{
			ID:               IDSynthesis,
			Name:             "Forecast synthesis",
			Category:         "forecast",
			Description:      "Combines tool outputs into the structured forecast",
			SystemPrompt:     synthesisSystem,
			UserPromptTmpl:   synthesisUser,
			ResponseSchemaID: "forecast_output",
			Variables: []PromptVariable{
				{Name: "Company", Type: "string", Required: true},
				{Name: "Task", Type: "string", Required: true},
				{Name: "Context", Type: "string", Required: true},
				{Name: "Sources", Type: "array", Required: true},
				{Name: "Schema", Type: "object", Required: true},
			},
			Version: "1",
		},
		{
			ID:             IDFinancialExtraction,
			Name:           "Financial metrics extraction",
			Category:       "extraction",
			Description:    "Pulls headline metrics out of quarterly report text",
			SystemPrompt:   extractionSystem,
			UserPromptTmpl: extractionUser,
			Variables: []PromptVariable{
				{Name: "ReportText", Type: "string", Required: true},
			},
			Version: "1",
		},
		{
			ID:             IDQualitativeAnalysis,
			Name:           "Transcript analysis",
			Category:       "qualitative",
			Description:    "Answers a question from retrieved transcript excerpts",
			SystemPrompt:   qualitativeSystem,
			UserPromptTmpl: qualitativeUser,
			Variables: []PromptVariable{
				{Name: "Context", Type: "string", Required: true},
				{Name: "Query", Type: "string", Required: true},
			},
			Version: "1",
		},
	}
	for _, pt := range builtins {
		_ = r.Register(pt)
	}
}
