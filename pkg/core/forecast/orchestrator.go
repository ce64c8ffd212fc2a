// Package forecast runs the fixed tool pipeline and synthesizes its results
// into a structured forecast.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"forecast_agent/pkg/core/extract"
	"forecast_agent/pkg/core/llm"
	"forecast_agent/pkg/core/logger"
	"forecast_agent/pkg/core/prompt"
	"forecast_agent/pkg/core/tools"
	"forecast_agent/pkg/models"
)

// SynthesisTemperature is the sampling temperature of the final model call.
const SynthesisTemperature = 0.2

// Stage is one step of the pipeline.
type Stage struct {
	Name string
	Run  func(ctx context.Context, task string) tools.Result
}

// Sink persists finished runs.
type Sink interface {
	Save(ctx context.Context, run *models.ForecastRun) (int64, error)
	SaveMetrics(ctx context.Context, metrics *models.FinancialMetrics, runID int64) error
}

// Options configure the default stage list.
type Options struct {
	Company     string
	ReportsPath string
	Symbol      string
}

// Orchestrator runs the stages in order, then one synthesis call. It holds
// only collaborators that are safe to share, so Generate may be called
// concurrently.
type Orchestrator struct {
	gateway llm.Gateway
	stages  []Stage
	sink    Sink
	company string
}

// New builds the standard three-stage pipeline: financial extraction,
// qualitative analysis, market data.
func New(gateway llm.Gateway, fin *tools.FinancialExtractor, qual *tools.QualitativeAnalyzer, mkt *tools.MarketData, sink Sink, opts Options) *Orchestrator {
	stages := []Stage{
		{
			Name: tools.NameFinancial,
			Run: func(ctx context.Context, _ string) tools.Result {
				return fin.Extract(ctx, opts.ReportsPath)
			},
		},
		{
			Name: tools.NameQualitative,
			Run: func(ctx context.Context, task string) tools.Result {
				return qual.Analyze(ctx, tools.QueryForTask(task))
			},
		},
		{
			Name: tools.NameMarket,
			Run: func(ctx context.Context, _ string) tools.Result {
				return mkt.Fetch(ctx, opts.Symbol)
			},
		},
	}
	return NewWithStages(gateway, stages, sink, opts.Company)
}

// NewWithStages builds an orchestrator over an explicit stage list.
func NewWithStages(gateway llm.Gateway, stages []Stage, sink Sink, company string) *Orchestrator {
	if company == "" {
		company = "the company"
	}
	return &Orchestrator{
		gateway: gateway,
		stages:  append([]Stage(nil), stages...),
		sink:    sink,
		company: company,
	}
}

// StageNames lists the stages in execution order.
func (o *Orchestrator) StageNames() []string {
	names := make([]string, len(o.stages))
	for i, s := range o.stages {
		names[i] = s.Name
	}
	return names
}

// Generate runs the whole pipeline for task. It never fails: problems are
// reflected in the returned run's Status and ErrorMessage, and Forecast is
// always set.
func (o *Orchestrator) Generate(ctx context.Context, task string) *models.ForecastRun {
	rc := newRunContext(task)
	log := logger.Log.WithField("run_id", rc.RunID)
	log.Infof("forecast started: %s", truncate(task, 100))

	for _, stage := range o.stages {
		r := runStage(ctx, stage, task)
		rc.record(r)
		entry := log.WithFields(logrus.Fields{"tool": stage.Name, "duration": r.Duration.Round(time.Millisecond)})
		if r.OK() {
			entry.Info("tool succeeded")
		} else {
			entry.Warnf("tool failed: %s", r.Reason)
		}
	}

	sources := rc.Succeeded()
	run := &models.ForecastRun{
		RunID:            rc.RunID,
		RequestTimestamp: rc.Started.UTC(),
		TaskDescription:  task,
		ToolsUsed:        append([]string{}, rc.Attempted...),
		LLMProvider:      o.gateway.ProviderName(),
		Metrics:          financialMetrics(rc),
	}

	var errs []error
	for _, f := range rc.Failed() {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrToolFailure, f.Tool, f.Reason))
	}

	raw, err := o.synthesize(ctx, rc, sources)
	switch {
	case err != nil:
		out := failedForecast(err, sources)
		run.Forecast = &out
		run.Status = models.StatusError
		errs = append([]error{err}, errs...)
	default:
		run.RawOutput = raw
		out, method := extract.Forecast(raw, sources)
		run.Forecast = &out
		run.Status = models.StatusSuccess
		if len(rc.Failed()) > 0 {
			run.Status = models.StatusPartial
		}
		// the minimal output is still a forecast; status follows the tools
		if method == extract.MethodFallback {
			errs = append([]error{fmt.Errorf("%w: model response contained no JSON object", ErrExtractionFailure)}, errs...)
		}
		log.Debugf("forecast extracted via %s", method)
	}
	if len(errs) > 0 {
		run.ErrorMessage = errors.Join(errs...).Error()
	}

	run.ExecutionTimeSeconds = time.Since(rc.Started).Seconds()
	o.persist(ctx, run, log)

	log.WithField("status", run.Status).Infof("forecast finished in %.2fs", run.ExecutionTimeSeconds)
	return run
}

func (o *Orchestrator) synthesize(ctx context.Context, rc *RunContext, sources []string) (string, error) {
	srcJSON, _ := json.Marshal(sources)
	p, err := prompt.Build(prompt.IDSynthesis, prompt.NewContext().
		Set("Company", o.company).
		Set("Task", rc.Task).
		Set("Context", Aggregate(rc.Results)).
		Set("Sources", string(srcJSON)).
		Set("Schema", prompt.SchemaFor(prompt.IDSynthesis, extract.ForecastSchemaJSON)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSynthesisFailure, err)
	}

	raw, err := o.gateway.Complete(ctx, p, SynthesisTemperature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSynthesisFailure, err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: empty model response", ErrSynthesisFailure)
	}
	return raw, nil
}

func (o *Orchestrator) persist(ctx context.Context, run *models.ForecastRun, log *logrus.Entry) {
	if o.sink == nil {
		return
	}
	id, err := o.sink.Save(ctx, run)
	if err != nil {
		log.Errorf("%v", fmt.Errorf("%w: %v", ErrPersistenceFailure, err))
		return
	}
	run.ID = id
	if run.Metrics == nil {
		return
	}
	if err := o.sink.SaveMetrics(ctx, run.Metrics, id); err != nil {
		log.Errorf("%v", fmt.Errorf("%w: metrics: %v", ErrPersistenceFailure, err))
	}
}

// runStage converts errors and panics inside a stage into a Failure.
func runStage(ctx context.Context, stage Stage, task string) (res tools.Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			logger.Log.Errorf("stage %s panicked: %v\n%s", stage.Name, p, debug.Stack())
			res = tools.Failure(stage.Name, fmt.Sprintf("panic: %v", p))
		}
		res.Tool = stage.Name
		if !res.OK() && res.Reason == "" {
			res.Reason = "no result"
		}
		res.Duration = time.Since(start)
	}()
	if err := ctx.Err(); err != nil {
		return tools.Failure(stage.Name, err.Error())
	}
	return stage.Run(ctx, task)
}

func financialMetrics(rc *RunContext) *models.FinancialMetrics {
	r, ok := rc.Result(tools.NameFinancial)
	if !ok || !r.OK() {
		return nil
	}
	var m models.FinancialMetrics
	if err := json.Unmarshal(r.Payload, &m); err != nil {
		return nil
	}
	return &m
}

func failedForecast(err error, sources []string) models.ForecastOutput {
	out := models.ForecastOutput{
		Summary:         "Forecast could not be generated: " + err.Error(),
		ConfidenceLevel: models.ConfidenceLow,
		DataSourcesUsed: append([]string{}, sources...),
	}
	out.Normalize()
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
