package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Digesta/internal/core"
	"github.com/markdave123-py/Digesta/internal/models"
)

type fakeBackend struct {
	mu      sync.Mutex
	calls   []string
	prompts []string
	reply   func(model, prompt string) (string, error)
}

func (f *fakeBackend) Provider() string { return "fake" }

func (f *fakeBackend) GenerateWithModel(_ context.Context, model, prompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model)
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.reply(model, prompt)
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return nil
}

func newTestClient(b core.ModelBackend, names ...string) (*SummarizationClient, *sleepRecorder) {
	rec := &sleepRecorder{}
	cands := make([]ModelCandidate, len(names))
	for i, n := range names {
		cands[i] = ModelCandidate{Name: n, Priority: i, Backend: b}
	}
	return NewSummarizationClient(cands, Options{Sleep: rec.sleep}), rec
}

const docText = "The committee reviewed the annual budget in detail. Several departments asked for more funding."

func TestSummarize_FailsOverPastMissingModels(t *testing.T) {
	b := &fakeBackend{reply: func(model, _ string) (string, error) {
		if model == "m3" {
			return "First paragraph.\n\nSecond paragraph.", nil
		}
		return "", errors.New("model not found for API version v1beta")
	}}
	c, rec := newTestClient(b, "m1", "m2", "m3")

	out, err := c.Summarize(context.Background(), docText, LengthMedium)
	require.NoError(t, err)
	assert.Equal(t, "m3", out.ModelName)
	assert.Equal(t, models.ProviderAI, out.ProviderUsed)
	assert.Equal(t, 2, c.CurrentIndex())
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, rec.delays)

	_, err = c.Summarize(context.Background(), docText, LengthShort)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3", "m3"}, b.calls)
	assert.Equal(t, "m3", c.CurrentModel())
}

func TestSummarize_RetriesGenericErrorWithLinearBackoff(t *testing.T) {
	b := &fakeBackend{reply: func(string, string) (string, error) {
		return "", errors.New("connection reset by peer")
	}}
	c, rec := newTestClient(b, "m1", "m2")

	_, err := c.Summarize(context.Background(), docText, LengthMedium)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSummaryGenerationFailed)
	assert.Equal(t, 3, b.callCount())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.delays)
	assert.Equal(t, 0, c.CurrentIndex())
	assert.False(t, c.ServiceAvailable())

	var se *SummarizationError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.RetrySuggested())
}

func TestSummarize_AllModelsUnavailable(t *testing.T) {
	b := &fakeBackend{reply: func(string, string) (string, error) {
		return "", &core.BackendError{Provider: "fake", StatusCode: 503, Err: errors.New("overloaded")}
	}}
	c, _ := newTestClient(b, "m1", "m2")

	_, err := c.Summarize(context.Background(), docText, LengthLong)
	assert.ErrorIs(t, err, ErrAllModelsUnavailable)
	assert.True(t, FallbackEligible(err))
	assert.Equal(t, 1, c.CurrentIndex())
	assert.False(t, c.ServiceAvailable())
}

func TestSummarize_ProbeWhenUnavailable(t *testing.T) {
	healthy := false
	b := &fakeBackend{reply: func(_, prompt string) (string, error) {
		if !healthy {
			return "", errors.New("socket hang up")
		}
		return "ready", nil
	}}
	c, _ := newTestClient(b, "m1")

	_, err := c.Summarize(context.Background(), docText, LengthMedium)
	require.Error(t, err)
	require.False(t, c.ServiceAvailable())

	calls := b.callCount()
	_, err = c.Summarize(context.Background(), docText, LengthMedium)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, calls+1, b.callCount(), "a failed probe must not spend the retry budget")
	assert.Equal(t, probePrompt, b.prompts[len(b.prompts)-1])

	healthy = true
	out, err := c.Summarize(context.Background(), docText, LengthMedium)
	require.NoError(t, err)
	assert.Equal(t, "ready", out.SummaryText)
	assert.True(t, c.ServiceAvailable())
}

func TestSummarize_TypedFailures(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		kind  error
		retry bool
	}{
		{"quota", &core.BackendError{StatusCode: 429, Err: errors.New("resource exhausted")}, ErrQuotaExceeded, false},
		{"auth", &core.BackendError{StatusCode: 401, Err: errors.New("bad key")}, ErrAuthConfig, false},
		{"blocked", &core.BackendError{Err: errBlocked}, ErrContentBlocked, false},
		{"timeout", context.DeadlineExceeded, ErrTimeout, true},
		{"message quota", errors.New("Quota exceeded for requests"), ErrQuotaExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{reply: func(string, string) (string, error) { return "", tt.err }}
			c, _ := newTestClient(b, "m1")

			_, err := c.Summarize(context.Background(), docText, LengthMedium)
			require.ErrorIs(t, err, tt.kind)
			var se *SummarizationError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.retry, se.RetrySuggested())
			assert.NotEmpty(t, se.Remediation())
			assert.Equal(t, 3, b.callCount())
		})
	}
}

func TestSummarize_EmptyInputAndNoModels(t *testing.T) {
	b := &fakeBackend{reply: func(string, string) (string, error) { return "x", nil }}
	c, _ := newTestClient(b, "m1")

	_, err := c.Summarize(context.Background(), "   \n", LengthShort)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, b.callCount())

	empty := NewSummarizationClient(nil, Options{})
	_, err = empty.Summarize(context.Background(), docText, LengthShort)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, "", empty.CurrentModel())
	assert.False(t, empty.TestModel(context.Background()))
}

func TestSummarize_EmptyReplyIsRetried(t *testing.T) {
	n := 0
	b := &fakeBackend{reply: func(string, string) (string, error) {
		n++
		if n == 1 {
			return "  ", nil
		}
		return "A summary.", nil
	}}
	c, rec := newTestClient(b, "m1")

	out, err := c.Summarize(context.Background(), docText, LengthShort)
	require.NoError(t, err)
	assert.Equal(t, "A summary.", out.SummaryText)
	assert.Equal(t, []time.Duration{2 * time.Second}, rec.delays)
}

func TestSummarize_SendsPreparedPrompt(t *testing.T) {
	var got string
	b := &fakeBackend{reply: func(_, prompt string) (string, error) {
		got = prompt
		return "ok", nil
	}}
	c, _ := newTestClient(b, "m1")

	_, err := c.Summarize(context.Background(), "one\n\n\ntwo   three", LengthLong)
	require.NoError(t, err)
	assert.Contains(t, got, `"one two three"`)
	assert.Contains(t, got, "7-9 paragraphs")
}

func TestAdvance_ConcurrentFailuresMoveOnce(t *testing.T) {
	b := &fakeBackend{reply: func(string, string) (string, error) { return "", nil }}
	c, _ := newTestClient(b, "m1", "m2", "m3")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, ok := c.advance(0)
			assert.True(t, ok)
			assert.Equal(t, 1, next)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.CurrentIndex())

	next, ok := c.advance(1)
	assert.True(t, ok)
	assert.Equal(t, 2, next)
	next, ok = c.advance(2)
	assert.False(t, ok)
	assert.Equal(t, 2, next)
	assert.Equal(t, 2, c.CurrentIndex())
}

func TestTestModelAndIntrospection(t *testing.T) {
	b := &fakeBackend{reply: func(_, prompt string) (string, error) {
		if prompt == testPrompt {
			return " OK.\n", nil
		}
		return "", errors.New("unexpected prompt")
	}}
	c := NewSummarizationClient([]ModelCandidate{
		{Name: "second", Priority: 2, Backend: b},
		{Name: "first", Priority: 1, Backend: b},
	}, Options{})

	assert.Equal(t, []string{"first", "second"}, c.AvailableModels())
	assert.Equal(t, "first", c.CurrentModel())
	assert.True(t, c.ServiceAvailable())
	assert.True(t, c.TestModel(context.Background()))
	assert.Equal(t, []string{"first"}, b.calls)
}
