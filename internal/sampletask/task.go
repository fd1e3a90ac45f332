package sampletask

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dandantas/taskkeeper/internal/sampletask/evaluator"
	"github.com/dandantas/taskkeeper/internal/sampletask/webhook"
	"github.com/dandantas/taskkeeper/internal/sampletask/worker"
	"github.com/dandantas/taskkeeper/internal/task"
)

// Checker owns the resources one endpoint-checking task needs across runs:
// an HTTP client, the rule evaluator, the webhook dispatcher and the
// worker pool that alert delivery is dispatched to.
type Checker struct {
	cfg        Config
	httpClient *http.Client
	evaluator  *evaluator.Evaluator
	dispatcher *webhook.Dispatcher
	pool       *worker.Pool
}

// alertJob is the payload delivered to the worker pool for one matched
// rule. rc is the originating run's context, so the eventual delivery
// outcome still lands in that run's log even though the callback itself
// already returned.
type alertJob struct {
	rc      *task.RunContext
	payload webhook.Payload
}

// NewChecker validates cfg and starts its worker pool. Call Stop when the
// owning task is shut down.
func NewChecker(cfg Config) (*Checker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Checker{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Target.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		evaluator:  evaluator.NewEvaluator(),
		dispatcher: webhook.NewDispatcher(cfg.Target.Timeout),
	}

	c.pool = worker.NewPool(cfg.Workers, cfg.Workers*4, c.deliverAlert)
	c.pool.Start()
	return c, nil
}

// Stop drains the worker pool, waiting for in-flight alert deliveries.
func (c *Checker) Stop() {
	c.pool.Stop()
}

// Callback returns the task.Callback that drives one check run.
func (c *Checker) Callback() task.Callback {
	return c.run
}

func (c *Checker) run(rc *task.RunContext) (task.ValidStatus, error) {
	ctx := context.Background()

	req, err := c.buildRequest(ctx)
	if err != nil {
		return rc.FailedWithError(ctx, "failed to build request", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rc.FailedWithError(ctx, fmt.Sprintf("request to %s failed", c.cfg.Target.URL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return rc.FailedWithError(ctx, "failed to read response body", err)
	}
	elapsed := time.Since(start)

	_ = rc.Log(ctx, fmt.Sprintf("checked %s: status=%d duration=%s", c.cfg.Target.URL, resp.StatusCode, elapsed))

	evaluations := c.evaluator.EvaluateRules(c.cfg.Rules, string(body))
	toAlert := evaluator.MatchedForAlert(evaluations, c.cfg.Rules)

	if len(toAlert) == 0 {
		return rc.Done(ctx, fmt.Sprintf("check completed, %d rule(s) evaluated, none triggered an alert", len(evaluations)))
	}

	runID := rc.GetRunID()
	for _, eval := range toAlert {
		payload := formatAlertPayload(c.cfg.Target.URL, resp.StatusCode, runID, eval)
		c.pool.Submit(worker.Job{
			ID:      fmt.Sprintf("run-%d-rule-%s", runID, eval.RuleName),
			Context: context.Background(),
			Payload: alertJob{rc: rc, payload: payload},
		})
	}

	return rc.Dispatched(ctx, fmt.Sprintf("%d rule(s) matched, alert delivery dispatched to worker pool", len(toAlert)))
}

func (c *Checker) buildRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if c.cfg.Target.Body != "" {
		body = bytes.NewBufferString(c.cfg.Target.Body)
	}

	req, err := http.NewRequestWithContext(ctx, c.cfg.Target.Method, c.cfg.Target.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range c.cfg.Target.Headers {
		req.Header.Set(k, v)
	}
	switch c.cfg.Target.Auth.Type {
	case "basic":
		req.SetBasicAuth(c.cfg.Target.Auth.Username, c.cfg.Target.Auth.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.cfg.Target.Auth.Token)
	}
	return req, nil
}

// deliverAlert is the worker pool's ExecutorFunc: it runs on a pool
// goroutine, entirely off the runner's execution path, and logs the
// delivery outcome back onto the originating run.
func (c *Checker) deliverAlert(ctx context.Context, job worker.Job) {
	aj, ok := job.Payload.(alertJob)
	if !ok {
		slog.Error("sampletask: worker pool job had unexpected payload type", "job_id", job.ID)
		return
	}

	result, err := c.dispatcher.SendAlert(ctx, c.cfg.Webhook, aj.payload)
	if err != nil {
		_ = aj.rc.LogError(ctx, fmt.Sprintf("alert delivery failed: %s", job.ID), err)
		return
	}
	_ = aj.rc.Log(ctx, fmt.Sprintf("alert delivered: %s status=%s attempts=%d", job.ID, result.FinalStatus, len(result.Attempts)))
}
