package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"forecast_agent/pkg/core/tools"
)

// RunContext is the per-request state of one Generate call. It is never
// shared between calls.
type RunContext struct {
	RunID     string
	Task      string
	Started   time.Time
	Results   []tools.Result
	Attempted []string
}

func newRunContext(task string) *RunContext {
	return &RunContext{
		RunID:   uuid.NewString(),
		Task:    task,
		Started: time.Now(),
	}
}

func (rc *RunContext) record(r tools.Result) {
	rc.Results = append(rc.Results, r)
	rc.Attempted = append(rc.Attempted, r.Tool)
}

// Succeeded returns the names of successful tools in execution order.
func (rc *RunContext) Succeeded() []string {
	out := []string{}
	for _, r := range rc.Results {
		if r.OK() {
			out = append(out, r.Tool)
		}
	}
	return out
}

// Failed returns the failed results in execution order.
func (rc *RunContext) Failed() []tools.Result {
	var out []tools.Result
	for _, r := range rc.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Result returns the result of the named tool, if it ran.
func (rc *RunContext) Result(name string) (tools.Result, bool) {
	for _, r := range rc.Results {
		if r.Tool == name {
			return r, true
		}
	}
	return tools.Result{}, false
}

var sectionTitles = map[string]string{
	tools.NameFinancial:   "Financial Metrics",
	tools.NameQualitative: "Management Commentary",
	tools.NameMarket:      "Market Data",
}

// Aggregate renders every result as a titled section, in execution order.
// Failed tools appear as "unavailable: <reason>".
func Aggregate(results []tools.Result) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		title, ok := sectionTitles[r.Tool]
		if !ok {
			title = r.Tool
		}
		fmt.Fprintf(&b, "## %s (%s)\n", title, r.Tool)
		if !r.OK() {
			b.WriteString("unavailable: " + r.Reason)
			continue
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, r.Payload, "", "  "); err != nil {
			b.Write(r.Payload)
			continue
		}
		b.Write(pretty.Bytes())
	}
	return b.String()
}
