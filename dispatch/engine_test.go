package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/proofread"
	"github.com/randalmurphal/proofread/completion"
	"github.com/randalmurphal/proofread/mock"
	"github.com/randalmurphal/proofread/provider"
	"github.com/randalmurphal/proofread/template"
	"github.com/randalmurphal/proofread/tokens"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const tinyModel = "tiny"

// tinyProfiles adds a model small enough that test documents need many chunks.
var tinyProfiles = tokens.Profiles.With(tokens.Profile{
	Model:              tinyModel,
	ContextWindow:      200,
	ReservedCompletion: 100,
})

// markerOnly sends chunks unwrapped so an echoing backend returns them as-is.
var markerOnly = template.MustParse(template.DefaultMarker, template.DefaultMarker)

func document() string {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("Line ")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(" of the scanned page, with sorne OCR noise.\n")
	}
	return b.String()
}

func newEngine(backend provider.Client, opts Options) *Engine {
	opts.Profiles = tinyProfiles
	opts.Logger = quiet
	settings := completion.DefaultSettings()
	settings.Decoding.MaxTokens = 100
	c := completion.New(backend, settings,
		completion.WithLogger(quiet),
		completion.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }))
	return New(c, opts)
}

func TestProcess_PreservesOrderUnderRandomLatency(t *testing.T) {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(1))
	backend := mock.New().WithLatency(func(provider.Request) time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return time.Duration(rng.Intn(20)) * time.Millisecond
	})

	doc := document()
	e := newEngine(backend, Options{})

	report, err := e.ProcessReport(context.Background(), doc, "fix", tinyModel, markerOnly)
	require.NoError(t, err)

	assert.Greater(t, report.Chunks, 5)
	assert.Equal(t, doc, report.Text)
	assert.Equal(t, report.Chunks, backend.CallCount())
	assert.Equal(t, report.Chunks, report.Usage.Requests)
	assert.Equal(t, report.Chunks, report.Attempts)
}

func TestProcess_ConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	backend := mock.New().WithCompleteFunc(func(ctx context.Context, req provider.Request) (*provider.Response, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return &provider.Response{Content: mock.LastUserMessage(req)}, nil
	})

	doc := document()
	e := newEngine(backend, Options{Concurrency: 3})

	text, err := e.Process(context.Background(), doc, "fix", tinyModel, markerOnly)
	require.NoError(t, err)
	assert.Equal(t, doc, text)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestProcess_AllOrNothing(t *testing.T) {
	boom := errors.New("backend exploded")
	var calls atomic.Int32
	backend := mock.New().WithCompleteFunc(func(ctx context.Context, req provider.Request) (*provider.Response, error) {
		if calls.Add(1) == 3 {
			return nil, boom
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
		return &provider.Response{Content: mock.LastUserMessage(req)}, nil
	})

	e := newEngine(backend, Options{Concurrency: 2})
	text, err := e.Process(context.Background(), document(), "fix", tinyModel, markerOnly)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, text)
}

func TestProcess_RetryExhaustionFailsDocument(t *testing.T) {
	backend := mock.New().WithError(provider.ErrRateLimited)
	e := newEngine(backend, Options{Concurrency: 1})

	_, err := e.Process(context.Background(), document(), "fix", tinyModel, markerOnly)
	assert.ErrorIs(t, err, proofread.ErrExhaustedRetries)
	assert.ErrorIs(t, err, provider.ErrRateLimited)
}

func TestProcess_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := mock.New().WithCompleteFunc(func(c context.Context, req provider.Request) (*provider.Response, error) {
		cancel()
		<-c.Done()
		return nil, c.Err()
	})

	e := newEngine(backend, Options{Concurrency: 1})
	_, err := e.Process(ctx, document(), "fix", tinyModel, markerOnly)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_SingleChunk(t *testing.T) {
	backend := mock.New().WithResponses("The cat sat.")
	e := newEngine(backend, Options{})

	report, err := e.ProcessReport(context.Background(), "Tbe cat sat.", "fix", "gpt-3.5-turbo", nil)
	require.NoError(t, err)
	assert.Equal(t, "The cat sat.", report.Text)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, "```Tbe cat sat.```", backend.Calls()[0].Messages[1].Content)
}

func TestProcess_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		model    string
		instr    string
		sentinel error
	}{
		{"unknown model", "text", "not-a-model", "fix", proofread.ErrConfiguration},
		{"empty document", "", tinyModel, "fix", proofread.ErrEmptyDocument},
		{"instructions exhaust budget", "text", tinyModel, strings.Repeat("instruction ", 60), proofread.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := mock.New()
			e := newEngine(backend, Options{})

			_, err := e.Process(context.Background(), tt.doc, tt.instr, tt.model, markerOnly)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Zero(t, backend.CallCount())
		})
	}
}

func TestPlan(t *testing.T) {
	e := newEngine(mock.New(), Options{})
	plan, err := e.Plan(document(), "fix", tinyModel, markerOnly)
	require.NoError(t, err)
	assert.Equal(t, document(), strings.Join(plan.Texts(), ""))
	for _, c := range plan.Chunks {
		assert.Less(t, c.Tokens+4, plan.Limit)
	}
}

func TestProcess_ReassemblesInIndexOrderWhenCompletedOutOfOrder(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "Line %d of the scanned page.\n", i)
	}
	doc := b.String()

	planner := newEngine(mock.New(), Options{})
	plan, err := planner.Plan(doc, "fix", tinyModel, markerOnly)
	require.NoError(t, err)
	n := len(plan.Chunks)
	require.GreaterOrEqual(t, n, 3)

	index := make(map[string]int, n)
	for _, c := range plan.Chunks {
		index[c.Text] = c.Index
	}
	require.Len(t, index, n, "chunk texts must be distinct")

	// The last chunk finishes first, then the rest in index order.
	order := []int{n - 1}
	for i := 0; i < n-1; i++ {
		order = append(order, i)
	}
	gates := make([]chan struct{}, n)
	for i := range gates {
		gates[i] = make(chan struct{})
	}
	close(gates[order[0]])

	var mu sync.Mutex
	var finished []int
	backend := mock.New().WithCompleteFunc(func(ctx context.Context, req provider.Request) (*provider.Response, error) {
		text := mock.LastUserMessage(req)
		i := index[text]
		select {
		case <-gates[i]:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		mu.Lock()
		finished = append(finished, i)
		if len(finished) < n {
			close(gates[order[len(finished)]])
		}
		mu.Unlock()
		return &provider.Response{Content: "<" + text + ">"}, nil
	})

	e := newEngine(backend, Options{})
	text, err := e.Process(context.Background(), doc, "fix", tinyModel, markerOnly)
	require.NoError(t, err)

	var want strings.Builder
	for _, c := range plan.Chunks {
		want.WriteString("<" + c.Text + ">")
	}
	assert.Equal(t, want.String(), text)
	assert.Equal(t, order, finished)
}

func TestProcess_ReservesReplyCap(t *testing.T) {
	profile, err := tokens.LookupProfile("gpt-3.5-turbo")
	require.NoError(t, err)
	counter, err := tokens.CounterFor(profile)
	require.NoError(t, err)

	// The backend enforces the context window over prompt and reply cap.
	backend := mock.New().WithCompleteFunc(func(ctx context.Context, req provider.Request) (*provider.Response, error) {
		used := tokens.MessageOverhead(len(req.Messages)) + req.MaxTokens
		for _, m := range req.Messages {
			used += counter.Count(m.Content)
		}
		if used > profile.ContextWindow {
			return nil, provider.NewHTTPError("mock", "complete", 400, provider.ErrRequestTooLarge, false)
		}
		return &provider.Response{Content: mock.LastUserMessage(req)}, nil
	})

	settings := completion.DefaultSettings()
	settings.Decoding.MaxTokens = 3000
	c := completion.New(backend, settings,
		completion.WithLogger(quiet),
		completion.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }))
	e := New(c, Options{Logger: quiet})

	doc := strings.Repeat(document(), 4)
	report, err := e.ProcessReport(context.Background(), doc, "fix", "gpt-3.5-turbo", markerOnly)
	require.NoError(t, err)
	assert.Equal(t, doc, report.Text)
	assert.Greater(t, report.Chunks, 1)
	assert.Equal(t, report.Chunks, report.Attempts, "no chunk should be rejected as too large")
	assert.LessOrEqual(t, report.Limit, profile.ContextWindow-settings.Decoding.MaxTokens)
}

func TestPlan_ReplyCapExhaustsWindow(t *testing.T) {
	settings := completion.DefaultSettings()
	settings.Decoding.MaxTokens = 250
	c := completion.New(mock.New(), settings, completion.WithLogger(quiet))

	e := New(c, Options{Profiles: tinyProfiles, Logger: quiet})
	_, err := e.Plan(document(), "fix", tinyModel, markerOnly)
	assert.ErrorIs(t, err, proofread.ErrConfiguration)

	e = New(c, Options{MaxTokens: 50, Profiles: tinyProfiles, Logger: quiet})
	_, err = e.Plan(document(), "fix", tinyModel, markerOnly)
	assert.NoError(t, err)
}
