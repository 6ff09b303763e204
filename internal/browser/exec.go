package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNotLoggedIn is returned when preflight cannot establish an
// authenticated session. The run aborts before any step executes; running
// partially authenticated is never acceptable.
var ErrNotLoggedIn = errors.New("browser session not logged in")

// ExecOptions controls plan execution policy.
type ExecOptions struct {
	RequireLogin    bool
	PreflightURL    string
	LoginEmail      string
	LoginPassword   string
	LoginTimeout    time.Duration
	MaxFindAttempts int
	RetryWait       time.Duration
	ContinueOnError bool
	MaxStepWait     time.Duration
}

// ApplyDefaults fills in zero-valued settings.
func (o *ExecOptions) ApplyDefaults() {
	if o.PreflightURL == "" {
		o.PreflightURL = DefaultAppURL + "/"
	}
	if o.LoginTimeout == 0 {
		o.LoginTimeout = 2 * time.Minute
	}
	if o.MaxFindAttempts <= 0 {
		o.MaxFindAttempts = 3
	}
	if o.RetryWait == 0 {
		o.RetryWait = 750 * time.Millisecond
	}
	if o.MaxStepWait == 0 {
		o.MaxStepWait = 30 * time.Second
	}
}

// ItemResult records one plan item's execution.
type ItemResult struct {
	Collection     string   `json:"collection"`
	Name           string   `json:"name"`
	LocalID        string   `json:"local_id"`
	StepsTotal     int      `json:"steps_total"`
	StepsCompleted int      `json:"steps_completed"`
	Errors         []string `json:"errors,omitempty"`
	Success        bool     `json:"success"`
	AbortedAtStep  string   `json:"aborted_at_step,omitempty"`
}

// Summary aggregates a whole plan execution.
type Summary struct {
	ExecutedAt     time.Time    `json:"executed_at"`
	ItemsTotal     int          `json:"items_total"`
	ItemsCompleted int          `json:"items_completed"`
	StepsTotal     int          `json:"steps_total"`
	StepsCompleted int          `json:"steps_completed"`
	Errors         []string     `json:"errors,omitempty"`
	Results        []ItemResult `json:"results"`
	Success        bool         `json:"success"`
	Aborted        bool         `json:"aborted"`
}

// CompletedIDs returns local IDs of items that completed successfully,
// keyed by collection. Only these are eligible for reconciliation.
func (s *Summary) CompletedIDs() map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, r := range s.Results {
		if !r.Success {
			continue
		}
		if out[r.Collection] == nil {
			out[r.Collection] = make(map[string]bool)
		}
		out[r.Collection][r.LocalID] = true
	}
	return out
}

// Executor runs plans against an agent. The agent session is exclusive;
// steps run strictly sequentially.
type Executor struct {
	agent  Agent
	opts   ExecOptions
	logger *slog.Logger
	sleep  func(context.Context, time.Duration)
}

// NewExecutor creates an executor for the given agent.
func NewExecutor(agent Agent, opts ExecOptions, logger *slog.Logger) *Executor {
	opts.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{agent: agent, opts: opts, logger: logger, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Execute runs every plan item's steps in order. It fails fast with
// ErrNotLoggedIn when preflight cannot authenticate; step failures never
// return an error, they are recorded on the summary.
func (x *Executor) Execute(ctx context.Context, plan *Plan) (*Summary, error) {
	summary := &Summary{
		ExecutedAt: time.Now().UTC(),
		ItemsTotal: len(plan.Items),
		Success:    true,
	}
	for _, item := range plan.Items {
		summary.StepsTotal += len(item.Steps)
	}
	if len(plan.Items) == 0 {
		return summary, nil
	}

	if err := x.preflight(ctx); err != nil {
		return nil, err
	}

	for _, item := range plan.Items {
		result := ItemResult{
			Collection: item.Collection,
			Name:       item.Name,
			LocalID:    item.LocalID,
			StepsTotal: len(item.Steps),
			Success:    true,
		}
		label := item.Collection + ":" + item.Name

		for _, step := range item.Steps {
			err := x.runStep(ctx, label, step)
			if err == nil {
				result.StepsCompleted++
				summary.StepsCompleted++
				continue
			}

			failure := fmt.Sprintf("%s:%s: %v", label, step.Name, err)
			result.Errors = append(result.Errors, failure)
			summary.Errors = append(summary.Errors, failure)
			x.captureFailure(ctx, label+"_"+step.Name+"_failed")

			if step.Required {
				result.Success = false
				if !x.opts.ContinueOnError {
					result.AbortedAtStep = step.Name
					summary.Results = append(summary.Results, result)
					summary.Success = false
					summary.Aborted = true
					return summary, nil
				}
				// Skip the item's remaining steps, move to the next item.
				break
			}
		}

		if result.Success {
			summary.ItemsCompleted++
		}
		summary.Results = append(summary.Results, result)
	}

	if summary.ItemsCompleted != summary.ItemsTotal || len(summary.Errors) > 0 {
		summary.Success = false
	}
	return summary, nil
}

// preflight verifies authentication before any step runs, attempting one
// scripted login when credentials are configured.
func (x *Executor) preflight(ctx context.Context) error {
	if !x.opts.RequireLogin {
		return nil
	}
	if err := x.agent.Navigate(ctx, x.opts.PreflightURL); err != nil {
		return fmt.Errorf("preflight navigation failed: %w", err)
	}
	loggedIn, err := x.agent.IsLoggedIn(ctx)
	if err != nil {
		return fmt.Errorf("preflight login check failed: %w", err)
	}
	if loggedIn {
		return nil
	}
	if x.opts.LoginEmail == "" || x.opts.LoginPassword == "" {
		return ErrNotLoggedIn
	}

	x.logger.Info("browser session not authenticated, attempting login", "email", x.opts.LoginEmail)
	if err := x.agent.Login(ctx, x.opts.LoginEmail, x.opts.LoginPassword, x.opts.LoginTimeout); err != nil {
		return fmt.Errorf("%w: login attempt failed: %v", ErrNotLoggedIn, err)
	}
	loggedIn, err = x.agent.IsLoggedIn(ctx)
	if err != nil || !loggedIn {
		return ErrNotLoggedIn
	}
	return nil
}

// runStep executes one step, converting panics into step failures. A find
// step retries up to the configured attempt count before failing.
func (x *Executor) runStep(ctx context.Context, label string, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()

	switch step.Action {
	case ActionNavigate:
		err = x.agent.Navigate(ctx, step.Target)
	case ActionFind:
		err = x.runFind(ctx, step)
	case ActionType:
		err = x.evalOK(ctx, typeActiveScript(step.Target), "unable to type into active element")
	case ActionKey:
		err = x.evalOK(ctx, keyDispatchScript(step.Target, step.Repeat), fmt.Sprintf("unable to dispatch key %q", step.Target))
	case ActionClick:
		err = x.evalOK(ctx, clickActiveScript, "unable to click active element")
	case ActionWait:
		x.sleep(ctx, clamp(step.Wait, x.opts.MaxStepWait))
	case ActionScreenshot:
		_, err = x.agent.Screenshot(ctx, step.Target)
	default:
		err = fmt.Errorf("unsupported action %q", step.Action)
	}
	if err != nil {
		return err
	}

	if step.WaitAfter > 0 {
		x.sleep(ctx, clamp(step.WaitAfter, x.opts.MaxStepWait))
	}
	if step.ScreenshotAfter {
		if _, serr := x.agent.Screenshot(ctx, label+"_"+step.Name+"_after"); serr != nil {
			x.logger.Warn("post-step screenshot failed", "step", step.Name, "error", serr)
		}
	}
	return nil
}

func (x *Executor) runFind(ctx context.Context, step Step) error {
	var lastErr error
	for attempt := 1; attempt <= x.opts.MaxFindAttempts; attempt++ {
		result, err := x.agent.Evaluate(ctx, findAndFocusScript(step.Target))
		if err == nil {
			if found, _ := result["found"].(bool); found {
				return nil
			}
			lastErr = fmt.Errorf("element not found for query %q", step.Target)
		} else {
			lastErr = err
		}
		if attempt < x.opts.MaxFindAttempts {
			x.sleep(ctx, x.opts.RetryWait)
		}
	}
	return lastErr
}

func (x *Executor) evalOK(ctx context.Context, script, failMsg string) error {
	result, err := x.agent.Evaluate(ctx, script)
	if err != nil {
		return err
	}
	if ok, _ := result["ok"].(bool); !ok {
		return errors.New(failMsg)
	}
	return nil
}

// captureFailure takes a best-effort evidence screenshot.
func (x *Executor) captureFailure(ctx context.Context, label string) {
	if _, err := x.agent.Screenshot(ctx, label); err != nil {
		x.logger.Warn("failure screenshot skipped", "label", label, "error", err)
	}
}

func clamp(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}
