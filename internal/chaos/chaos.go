// Package chaos runs fault-injection experiments against the library's
// persistence layer and checks that the loan invariants survive them.
package chaos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrSteadyStateInvalid aborts an experiment whose preconditions do not hold.
var ErrSteadyStateInvalid = errors.New("steady state invalid")

// Experiment defines a chaos engineering test.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Workload    []Action
	Rollback    []Action
	Validation  []Assertion
}

// Metric defines a measurable system property.
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action is a fault injection, workload step or recovery.
type Action struct {
	Type    string
	Target  string
	Execute func(context.Context) error
}

// Assertion validates the last observation of a metric.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

// Result captures experiment execution data.
type Result struct {
	ExperimentName   string               `json:"experiment_name"`
	StartTime        time.Time            `json:"start_time"`
	EndTime          time.Time            `json:"end_time"`
	Duration         time.Duration        `json:"duration"`
	HypothesisHeld   bool                 `json:"hypothesis_held"`
	SteadyStateValid bool                 `json:"steady_state_valid"`
	Violations       []MetricViolation    `json:"violations"`
	Observations     map[string]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent         `json:"error_events"`
	FailedAssertions []string             `json:"failed_assertions,omitempty"`
}

type MetricViolation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// Engine orchestrates chaos experiments.
type Engine struct {
	tracer      trace.Tracer
	logger      *slog.Logger
	mu          sync.Mutex
	experiments []Experiment
	results     []Result
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tracer: otel.Tracer("libradesk/chaos"),
		logger: logger.With("component", "chaos"),
	}
}

// RegisterExperiment adds an experiment to the suite.
func (e *Engine) RegisterExperiment(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

// Experiments returns the registered experiments.
func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

// Results returns the results of every experiment run so far.
func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// RunExperiment validates the steady state, injects the faults, runs the
// workload, rolls the faults back and checks the assertions.
func (e *Engine) RunExperiment(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string]DataPoint),
		ErrorEvents:    make([]ErrorEvent, 0),
	}

	span.AddEvent("validating_steady_state")
	if violations := e.measure(ctx, exp.SteadyState, nil); len(violations) > 0 {
		result.Violations = violations
		span.SetStatus(codes.Error, "steady state invalid")
		return result, fmt.Errorf("%w: %s", ErrSteadyStateInvalid, exp.Name)
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_chaos")
	e.execute(ctx, span, exp.Method, result)

	span.AddEvent("running_workload")
	e.execute(ctx, span, exp.Workload, result)

	span.AddEvent("rolling_back")
	e.execute(ctx, span, exp.Rollback, result)

	span.AddEvent("observing_system")
	result.Violations = e.measure(ctx, exp.SteadyState, result)

	span.AddEvent("validating_assertions")
	result.FailedAssertions = validateAssertions(exp.Validation, result)
	result.HypothesisHeld = len(result.Violations) == 0 && len(result.FailedAssertions) == 0
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
		attribute.Int("error_events", len(result.ErrorEvents)),
	)
	return result, nil
}

func (e *Engine) execute(ctx context.Context, span trace.Span, actions []Action, result *Result) {
	for _, action := range actions {
		if err := action.Execute(ctx); err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: action.Target,
			})
			span.RecordError(err, trace.WithAttributes(attribute.String("action.type", action.Type)))
		}
	}
}

// measure queries every metric and returns the ones outside their threshold.
// When result is non-nil the values are recorded as observations.
func (e *Engine) measure(ctx context.Context, metrics []Metric, result *Result) []MetricViolation {
	var violations []MetricViolation
	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			e.logger.WarnContext(ctx, "metric query failed", "metric", metric.Name, "error", err)
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     -1,
				Timestamp:  time.Now(),
			})
			continue
		}
		if result != nil {
			result.Observations[metric.Name] = DataPoint{Timestamp: time.Now(), Value: value}
		}
		if !evaluateThreshold(value, metric.Threshold) {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		}
	}
	return violations
}

func evaluateThreshold(value float64, threshold Threshold) bool {
	switch threshold.Operator {
	case ">":
		return value > threshold.Value
	case "<":
		return value < threshold.Value
	case ">=":
		return value >= threshold.Value
	case "<=":
		return value <= threshold.Value
	case "==":
		return value == threshold.Value
	default:
		return false
	}
}

func validateAssertions(assertions []Assertion, result *Result) []string {
	var failed []string
	for _, assertion := range assertions {
		observation, ok := result.Observations[assertion.Metric]
		if !ok || !assertion.Condition(observation.Value) {
			failed = append(failed, assertion.Message)
		}
	}
	return failed
}

// GameDay is a named series of experiments.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []Experiment
	// Pause is waited between experiments.
	Pause time.Duration
}

// ExecuteGameDay runs every scenario and returns an error naming the
// experiments whose hypothesis did not hold.
func (e *Engine) ExecuteGameDay(ctx context.Context, gameDay GameDay) error {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("gameday.name", gameDay.Name)),
	)
	defer span.End()

	e.logger.InfoContext(ctx, "starting game day", "name", gameDay.Name, "date", gameDay.Date, "experiments", len(gameDay.Scenarios))

	var failed []string
	for i, scenario := range gameDay.Scenarios {
		e.logger.InfoContext(ctx, "running experiment",
			"index", i+1, "name", scenario.Name, "hypothesis", scenario.Hypothesis)

		result, err := e.RunExperiment(ctx, scenario)
		if err != nil {
			e.logger.ErrorContext(ctx, "experiment aborted", "name", scenario.Name, "error", err)
			failed = append(failed, scenario.Name)
			continue
		}
		e.logResult(ctx, result)
		if !result.HypothesisHeld {
			failed = append(failed, scenario.Name)
		}

		if gameDay.Pause > 0 && i < len(gameDay.Scenarios)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(gameDay.Pause):
			}
		}
	}

	if len(failed) > 0 {
		span.SetStatus(codes.Error, "hypothesis violated")
		return fmt.Errorf("game day %q: hypothesis violated by %v", gameDay.Name, failed)
	}
	return nil
}

func (e *Engine) logResult(ctx context.Context, result *Result) {
	attrs := []any{
		"name", result.ExperimentName,
		"hypothesis_held", result.HypothesisHeld,
		"error_events", len(result.ErrorEvents),
		"duration", result.Duration,
	}
	if !result.HypothesisHeld {
		e.logger.WarnContext(ctx, "hypothesis violated",
			append(attrs, "violations", result.Violations, "failed_assertions", result.FailedAssertions)...)
		return
	}
	e.logger.InfoContext(ctx, "hypothesis held", attrs...)
}
