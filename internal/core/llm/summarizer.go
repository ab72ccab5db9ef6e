package llm

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/models"
)

const (
	probePrompt = "Say 'ready'"
	testPrompt  = "Respond with 'OK' only."
)

// ModelCandidate is one entry of the failover list. Lower Priority runs first.
type ModelCandidate struct {
	Name     string
	Priority int
	Backend  core.ModelBackend
}

type Options struct {
	MaxRetries     int
	RetryDelay     time.Duration
	SwitchCooldown time.Duration
	ProbeTimeout   time.Duration
	TestTimeout    time.Duration

	// Sleep waits between attempts. Tests replace it to record delays.
	Sleep  func(ctx context.Context, d time.Duration) error
	Now    func() time.Time
	Logger *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		SwitchCooldown: 1500 * time.Millisecond,
		ProbeTimeout:   3 * time.Second,
		TestTimeout:    5 * time.Second,
		Sleep:          sleepContext,
		Now:            time.Now,
		Logger:         slog.Default(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxRetries <= 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = d.RetryDelay
	}
	if o.SwitchCooldown <= 0 {
		o.SwitchCooldown = d.SwitchCooldown
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = d.ProbeTimeout
	}
	if o.TestTimeout <= 0 {
		o.TestTimeout = d.TestTimeout
	}
	if o.Sleep == nil {
		o.Sleep = d.Sleep
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

type SummarizationOutcome struct {
	SummaryText      string
	ProviderUsed     string
	Backend          string
	ModelName        string
	ProcessingTimeMs int64
}

// SummarizationClient generates summaries over an ordered list of models. The
// current model index and the availability flag are shared by every caller of
// one client: a model condemned by one request is skipped by all later ones.
type SummarizationClient struct {
	candidates []ModelCandidate
	opts       Options
	logger     *slog.Logger

	mu        sync.Mutex
	current   int
	available bool
}

func NewSummarizationClient(candidates []ModelCandidate, opts Options) *SummarizationClient {
	opts = opts.withDefaults()
	sorted := append([]ModelCandidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &SummarizationClient{
		candidates: sorted,
		opts:       opts,
		logger:     opts.Logger,
		available:  true,
	}
}

func (c *SummarizationClient) Summarize(ctx context.Context, text string, length Length) (*SummarizationOutcome, error) {
	if len(c.candidates) == 0 {
		return nil, &SummarizationError{Kind: ErrServiceUnavailable}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &SummarizationError{Kind: ErrEmptyInput}
	}
	if !c.ServiceAvailable() && !c.probe(ctx) {
		return nil, &SummarizationError{Kind: ErrServiceUnavailable, Model: c.CurrentModel()}
	}

	input := PrepareInput(text, length)
	prompt := BuildPrompt(input, length)
	start := c.opts.Now()

	idx := c.CurrentIndex()
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxRetries; attempt++ {
		cand := c.candidates[idx]
		c.logger.Info("generating summary",
			"model", cand.Name, "attempt", attempt, "chars", len(input), "length", string(length))

		summary, err := cand.Backend.GenerateWithModel(ctx, cand.Name, prompt)
		if err == nil && strings.TrimSpace(summary) == "" {
			err = errEmptyResponse
		}
		if err == nil {
			c.setAvailable(true)
			return &SummarizationOutcome{
				SummaryText:      summary,
				ProviderUsed:     models.ProviderAI,
				Backend:          cand.Backend.Provider(),
				ModelName:        cand.Name,
				ProcessingTimeMs: c.opts.Now().Sub(start).Milliseconds(),
			}, nil
		}
		lastErr = err
		c.logger.Warn("summary attempt failed", "model", cand.Name, "attempt", attempt, "error", err)

		if shouldSwitchModel(err) {
			next, ok := c.advance(idx)
			if !ok {
				c.setAvailable(false)
				return nil, &SummarizationError{Kind: ErrAllModelsUnavailable, Model: cand.Name, Cause: err}
			}
			c.logger.Info("switching model", "from", cand.Name, "model", c.candidates[next].Name)
			idx = next
			attempt = 0
			if err := c.opts.Sleep(ctx, c.opts.SwitchCooldown); err != nil {
				return nil, exhaustedError(err, c.candidates[idx].Name)
			}
			continue
		}

		if attempt < c.opts.MaxRetries {
			delay := c.opts.RetryDelay * time.Duration(attempt)
			c.logger.Info("retrying summary", "model", cand.Name, "delay_ms", delay.Milliseconds())
			if err := c.opts.Sleep(ctx, delay); err != nil {
				return nil, exhaustedError(err, cand.Name)
			}
		}
	}

	c.setAvailable(false)
	return nil, exhaustedError(lastErr, c.candidates[idx].Name)
}

// probe is the quick health check run while the service is marked unavailable.
func (c *SummarizationClient) probe(ctx context.Context) bool {
	cand := c.candidates[c.CurrentIndex()]
	pctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()

	if _, err := cand.Backend.GenerateWithModel(pctx, cand.Name, probePrompt); err != nil {
		c.logger.Info("quick service check failed", "model", cand.Name, "error", err)
		return false
	}
	c.setAvailable(true)
	return true
}

// TestModel asks the current model for a fixed reply.
func (c *SummarizationClient) TestModel(ctx context.Context) bool {
	if len(c.candidates) == 0 {
		return false
	}
	cand := c.candidates[c.CurrentIndex()]
	tctx, cancel := context.WithTimeout(ctx, c.opts.TestTimeout)
	defer cancel()

	out, err := cand.Backend.GenerateWithModel(tctx, cand.Name, testPrompt)
	if err != nil {
		c.logger.Info("model test failed", "model", cand.Name, "error", err)
		return false
	}
	return strings.Contains(strings.ToLower(strings.TrimSpace(out)), "ok")
}

// advance moves the shared index past from. Concurrent callers failing on the
// same model advance it once, and the index never moves backwards.
func (c *SummarizationClient) advance(from int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current > from {
		return c.current, true
	}
	if from+1 >= len(c.candidates) {
		return from, false
	}
	c.current = from + 1
	return c.current, true
}

func (c *SummarizationClient) setAvailable(v bool) {
	c.mu.Lock()
	c.available = v
	c.mu.Unlock()
}

func (c *SummarizationClient) ServiceAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

func (c *SummarizationClient) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *SummarizationClient) CurrentModel() string {
	if len(c.candidates) == 0 {
		return ""
	}
	return c.candidates[c.CurrentIndex()].Name
}

func (c *SummarizationClient) AvailableModels() []string {
	names := make([]string, len(c.candidates))
	for i, cand := range c.candidates {
		names[i] = cand.Name
	}
	return names
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
