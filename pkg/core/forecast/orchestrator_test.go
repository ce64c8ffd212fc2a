package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast_agent/pkg/core/extract"
	"forecast_agent/pkg/core/tools"
	"forecast_agent/pkg/models"
)

const validForecast = `{
	"summary": "Steady growth expected.",
	"financial_trends": ["Revenue up 5%"],
	"management_outlook": {"sentiment": "positive"},
	"risks_and_opportunities": ["Risk: currency (medium)"],
	"quarterly_forecast": "Revenue of 65,000 crore.",
	"confidence_level": "High",
	"data_sources_used": ["made_up"]
}`

type stubGateway struct {
	mu      sync.Mutex
	reply   func(prompt string) (string, error)
	prompts []string
	temps   []float64
}

func (s *stubGateway) Complete(_ context.Context, prompt string, temperature float64) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.temps = append(s.temps, temperature)
	s.mu.Unlock()
	return s.reply(prompt)
}

func (s *stubGateway) ProviderName() string { return "stub" }

func fixed(resp string, err error) *stubGateway {
	return &stubGateway{reply: func(string) (string, error) { return resp, err }}
}

func ok(name string, payload any) Stage {
	return Stage{Name: name, Run: func(context.Context, string) tools.Result { return tools.Success(name, payload) }}
}

func fail(name, reason string) Stage {
	return Stage{Name: name, Run: func(context.Context, string) tools.Result { return tools.Failure(name, reason) }}
}

type recordingSink struct {
	mu      sync.Mutex
	runs    []*models.ForecastRun
	metrics map[int64]*models.FinancialMetrics
	err     error
}

func (r *recordingSink) Save(_ context.Context, run *models.ForecastRun) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.runs = append(r.runs, run)
	return int64(len(r.runs)), nil
}

func (r *recordingSink) SaveMetrics(_ context.Context, m *models.FinancialMetrics, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metrics == nil {
		r.metrics = map[int64]*models.FinancialMetrics{}
	}
	r.metrics[id] = m
	return nil
}

func TestGenerateAllToolsSucceed(t *testing.T) {
	gw := fixed(validForecast, nil)
	sink := &recordingSink{}
	rev := 64259.0
	o := NewWithStages(gw, []Stage{
		ok(tools.NameFinancial, models.FinancialMetrics{TotalRevenue: &rev}),
		ok(tools.NameQualitative, map[string]string{"analysis": "upbeat"}),
		ok(tools.NameMarket, map[string]float64{"price": 4000}),
	}, sink, "Acme")

	run := o.Generate(context.Background(), "Forecast next quarter")

	assert.Equal(t, models.StatusSuccess, run.Status)
	assert.Empty(t, run.ErrorMessage)
	assert.Equal(t, []string{tools.NameFinancial, tools.NameQualitative, tools.NameMarket}, run.ToolsUsed)
	require.NotNil(t, run.Forecast)
	assert.Equal(t, models.ConfidenceHigh, run.Forecast.ConfidenceLevel)
	assert.Equal(t, run.ToolsUsed, run.Forecast.DataSourcesUsed, "sources are overwritten with the successful tools")
	assert.Equal(t, "stub", run.LLMProvider)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, int64(1), run.ID)
	assert.GreaterOrEqual(t, run.ExecutionTimeSeconds, 0.0)

	require.Len(t, gw.prompts, 1)
	assert.Equal(t, SynthesisTemperature, gw.temps[0])
	assert.Contains(t, gw.prompts[0], "about Acme")
	assert.Contains(t, gw.prompts[0], "Task: Forecast next quarter")
	assert.Contains(t, gw.prompts[0], `"price": 4000`)
	assert.NotContains(t, gw.prompts[0], "unavailable:")

	require.Contains(t, sink.metrics, int64(1))
	assert.Equal(t, 64259.0, *sink.metrics[1].TotalRevenue)
}

func TestGenerateOneToolFails(t *testing.T) {
	gw := fixed(validForecast, nil)
	o := NewWithStages(gw, []Stage{
		ok(tools.NameFinancial, map[string]int{"year": 2024}),
		fail(tools.NameQualitative, "no relevant context found"),
		ok(tools.NameMarket, map[string]int{"price": 1}),
	}, nil, "")

	run := o.Generate(context.Background(), "task")

	assert.Equal(t, models.StatusPartial, run.Status)
	assert.Equal(t, []string{tools.NameFinancial, tools.NameMarket}, run.Forecast.DataSourcesUsed)
	assert.NotContains(t, run.Forecast.DataSourcesUsed, tools.NameQualitative)
	assert.Len(t, run.ToolsUsed, 3)
	assert.Contains(t, run.ErrorMessage, "no relevant context found")
	assert.Contains(t, gw.prompts[0], "unavailable: no relevant context found")
}

func TestGenerateAllToolsFail(t *testing.T) {
	gw := fixed(validForecast, nil)
	o := NewWithStages(gw, []Stage{
		fail(tools.NameFinancial, "no documents loaded"),
		fail(tools.NameQualitative, "no relevant context found"),
		fail(tools.NameMarket, "quote failed"),
	}, nil, "")

	run := o.Generate(context.Background(), "task")

	require.Len(t, gw.prompts, 1, "synthesis still runs")
	assert.Equal(t, 3, strings.Count(gw.prompts[0], "unavailable: "))
	require.NotNil(t, run.Forecast)
	assert.Equal(t, models.StatusPartial, run.Status)
	assert.Empty(t, run.Forecast.DataSourcesUsed)
	assert.NotNil(t, run.Forecast.DataSourcesUsed)
	assert.Nil(t, run.Metrics)
}

func TestGenerateSynthesisFailure(t *testing.T) {
	for name, gw := range map[string]*stubGateway{
		"gateway error":  fixed("", errors.New("connection refused")),
		"empty response": fixed("   ", nil),
	} {
		t.Run(name, func(t *testing.T) {
			sink := &recordingSink{}
			o := NewWithStages(gw, []Stage{ok(tools.NameMarket, map[string]int{"price": 1})}, sink, "")
			run := o.Generate(context.Background(), "task")

			assert.Equal(t, models.StatusError, run.Status)
			require.NotNil(t, run.Forecast)
			assert.Equal(t, models.ConfidenceLow, run.Forecast.ConfidenceLevel)
			assert.Equal(t, []string{tools.NameMarket}, run.Forecast.DataSourcesUsed)
			assert.Contains(t, run.ErrorMessage, ErrSynthesisFailure.Error())
			assert.Len(t, sink.runs, 1, "failed runs are still persisted")
			assert.NoError(t, extract.Validate(*run.Forecast))
		})
	}
}

func TestGenerateExtractionFallback(t *testing.T) {
	gw := fixed("The outlook is positive but I cannot format it.", nil)
	o := NewWithStages(gw, []Stage{ok(tools.NameMarket, map[string]int{"price": 1})}, nil, "")

	run := o.Generate(context.Background(), "task")

	assert.Equal(t, models.StatusSuccess, run.Status, "every tool succeeded")
	assert.True(t, strings.HasPrefix(run.Forecast.Summary, extract.FallbackPrefix))
	assert.Equal(t, models.ConfidenceLow, run.Forecast.ConfidenceLevel)
	assert.Contains(t, run.ErrorMessage, ErrExtractionFailure.Error())
	assert.Equal(t, "The outlook is positive but I cannot format it.", run.RawOutput)
}

func TestGenerateExtractionFallbackWithFailedTool(t *testing.T) {
	gw := fixed("no json here", nil)
	o := NewWithStages(gw, []Stage{
		ok(tools.NameMarket, map[string]int{"price": 1}),
		fail(tools.NameQualitative, "no transcripts"),
	}, nil, "")

	run := o.Generate(context.Background(), "task")

	assert.Equal(t, models.StatusPartial, run.Status)
	assert.Contains(t, run.ErrorMessage, ErrExtractionFailure.Error())
	assert.Contains(t, run.ErrorMessage, "no transcripts")
}

func TestGenerateFencedResponse(t *testing.T) {
	gw := fixed("Here you go:\n```json\n"+validForecast+"\n```\nThanks.", nil)
	o := NewWithStages(gw, []Stage{ok(tools.NameMarket, map[string]int{"price": 1})}, nil, "")

	run := o.Generate(context.Background(), "task")
	assert.Equal(t, models.StatusSuccess, run.Status)
	assert.Equal(t, "Steady growth expected.", run.Forecast.Summary)
}

func TestGenerateRecoversStagePanic(t *testing.T) {
	gw := fixed(validForecast, nil)
	o := NewWithStages(gw, []Stage{
		{Name: tools.NameFinancial, Run: func(context.Context, string) tools.Result { panic("nil map") }},
		ok(tools.NameMarket, map[string]int{"price": 1}),
	}, nil, "")

	run := o.Generate(context.Background(), "task")
	assert.Equal(t, models.StatusPartial, run.Status)
	assert.Equal(t, []string{tools.NameFinancial, tools.NameMarket}, run.ToolsUsed)
	assert.Contains(t, gw.prompts[0], "unavailable: panic: nil map")
}

func TestGeneratePersistenceErrorIsNotFatal(t *testing.T) {
	o := NewWithStages(fixed(validForecast, nil), []Stage{ok(tools.NameMarket, 1)}, &recordingSink{err: errors.New("db down")}, "")
	run := o.Generate(context.Background(), "task")
	assert.Equal(t, models.StatusSuccess, run.Status)
	assert.Zero(t, run.ID)
}

func TestGenerateConcurrentRunsAreIsolated(t *testing.T) {
	gw := &stubGateway{reply: func(p string) (string, error) {
		i := strings.Index(p, "Task: ")
		task := strings.SplitN(p[i+len("Task: "):], "\n", 2)[0]
		b, _ := json.Marshal(map[string]any{"summary": task, "confidence_level": "medium"})
		return string(b), nil
	}}
	echo := func(name string) Stage {
		return Stage{Name: name, Run: func(_ context.Context, task string) tools.Result {
			return tools.Success(name, map[string]string{"task": task})
		}}
	}
	o := NewWithStages(gw, []Stage{echo("a"), echo("b"), echo("c")}, &recordingSink{}, "")

	const n = 20
	runs := make([]*models.ForecastRun, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runs[i] = o.Generate(context.Background(), fmt.Sprintf("task-%d", i))
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, run := range runs {
		assert.Equal(t, fmt.Sprintf("task-%d", i), run.Forecast.Summary)
		assert.Equal(t, []string{"a", "b", "c"}, run.ToolsUsed)
		assert.False(t, seen[run.RunID], "run ids must be unique")
		seen[run.RunID] = true
	}
}

func TestAggregate(t *testing.T) {
	out := Aggregate([]tools.Result{
		tools.Success(tools.NameFinancial, map[string]int{"year": 2024}),
		tools.Failure(tools.NameMarket, "timeout"),
		tools.Failure("custom", "nope"),
	})
	assert.Equal(t, "## Financial Metrics (financial_data_extractor)\n{\n  \"year\": 2024\n}\n\n"+
		"## Market Data (market_data)\nunavailable: timeout\n\n"+
		"## custom (custom)\nunavailable: nope", out)
}

func TestStageNames(t *testing.T) {
	o := New(fixed("", nil), nil, nil, nil, nil, Options{})
	assert.Equal(t, []string{tools.NameFinancial, tools.NameQualitative, tools.NameMarket}, o.StageNames())
}
