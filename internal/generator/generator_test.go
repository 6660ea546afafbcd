package generator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/generator"
)

// -----------------------------------------------------------------------------
// Test doubles
// -----------------------------------------------------------------------------

type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

// seqRand always draws f and hands out wish indexes in sequence.
type seqRand struct {
	f    float64
	mu   sync.Mutex
	next int
}

func (s *seqRand) Float64() float64 { return s.f }

func (s *seqRand) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.next % n
	s.next++
	return i
}

// MockCompleter stands in for an external completion backend.
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, rc generator.RenderContext) (string, error) {
	args := m.Called(ctx, rc)
	return args.String(0), args.Error(1)
}

// countingRepo counts lookups to observe cache hits.
type countingRepo struct {
	*client.MemoryRepository
	gets atomic.Int32
}

func (r *countingRepo) Get(ctx context.Context, id int64) (*client.Client, error) {
	r.gets.Add(1)
	return r.MemoryRepository.Get(ctx, id)
}

var today = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func roster() *countingRepo {
	return &countingRepo{MemoryRepository: client.NewMemoryRepository(
		client.Client{ID: 1, FirstName: "Anna", LastName: "Smirnova", Email: "anna@example.com", Segment: "VIP-клиент", CompanyName: "Acme", Position: "CFO", Birthday: client.NewDate(1994, time.March, 15)},
		client.Client{ID: 2, FirstName: "Boris", LastName: "Ivanov", Email: "boris@example.com", Segment: "", Birthday: client.NewDate(2000, time.March, 15)},
		client.Client{ID: 3, FirstName: "Clara", LastName: "Petrova", Email: "clara@example.com", Segment: "Лояльный", Birthday: client.NewDate(1980, time.December, 1)},
	)}
}

func newGenerator(t *testing.T, repo generator.ClientGetter, r generator.Rand) *generator.Generator {
	t.Helper()
	cat, err := generator.NewCatalog("en")
	require.NoError(t, err)
	return generator.New(generator.Config{
		Clients: repo,
		Catalog: cat,
		Clock:   MockClock{CurrentTime: today},
		Rand:    r,
	})
}

// -----------------------------------------------------------------------------
// Test Cases
// -----------------------------------------------------------------------------

func TestGenerateForClient_Template(t *testing.T) {
	g := newGenerator(t, roster(), generator.NoWish{})

	r, err := g.GenerateForClient(context.Background(), 2, generator.Options{})
	require.NoError(t, err)

	want := "Dear Boris Ivanov,\n\nHappy birthday! We wish you health, happiness and success in everything you do."
	assert.Equal(t, want, r.Text)
	assert.Equal(t, int64(2), r.ClientID)
	assert.Equal(t, "Boris Ivanov", r.ClientName)
	assert.Equal(t, config.EventBirthday, r.EventType)
	assert.Equal(t, client.BucketDefault, r.Segment)
	assert.Equal(t, config.MethodTemplate, r.Method)
	assert.Equal(t, config.DefaultTone, r.Tone)
	assert.Equal(t, len([]rune(want)), r.Length)
	assert.Equal(t, today, r.GeneratedAt)

	require.NotNil(t, r.Context.Age)
	assert.Equal(t, 24, *r.Context.Age)
	assert.False(t, r.Context.IsJubilee)
	assert.Equal(t, "your company", r.Context.Company, "Empty company uses the fallback")
}

func TestGenerateForClient_Jubilee(t *testing.T) {
	g := newGenerator(t, roster(), generator.NoWish{})

	r, err := g.GenerateForClient(context.Background(), 1, generator.Options{})
	require.NoError(t, err)

	assert.Equal(t, client.BucketVIP, r.Segment)
	assert.Equal(t, config.ToneFormal, r.Tone)
	require.NotNil(t, r.Context.Age)
	assert.Equal(t, 30, *r.Context.Age)
	assert.True(t, r.Context.IsJubilee)
	assert.Equal(t, generator.AdjectiveMature, r.Context.AgeAdjective)
	assert.True(t, strings.HasPrefix(r.Text, "Dear Anna Smirnova,"))
	assert.Contains(t, r.Text, "partner of Acme")
	assert.True(t, strings.HasSuffix(r.Text, "\n\nA special congratulation on your 30th anniversary! It is a significant milestone, and we are proud to be part of your journey."))
}

func TestGenerateForClient_ToneOverride(t *testing.T) {
	g := newGenerator(t, roster(), generator.NoWish{})

	r, err := g.GenerateForClient(context.Background(), 3, generator.Options{Tone: "playful"})
	require.NoError(t, err)
	assert.Equal(t, "playful", r.Tone)
	assert.Equal(t, client.BucketLoyal, r.Segment)
}

func TestGenerateForClient_NonBirthdayHasNoAge(t *testing.T) {
	g := newGenerator(t, roster(), generator.NoWish{})

	r, err := g.GenerateForClient(context.Background(), 1, generator.Options{EventType: config.EventProfessional})
	require.NoError(t, err)
	assert.Nil(t, r.Context.Age)
	assert.Empty(t, r.Context.AgeAdjective)
	assert.NotContains(t, r.Text, "anniversary")
}

func TestGenerateForClient_NotFound(t *testing.T) {
	g := newGenerator(t, roster(), generator.NoWish{})

	_, err := g.GenerateForClient(context.Background(), 99, generator.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrNotFound)

	var nf *generator.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, int64(99), nf.ClientID)
}

func TestGenerateForClient_CachedResultIsIdentical(t *testing.T) {
	repo := roster()
	g := newGenerator(t, repo, &seqRand{f: 0.9})

	first, err := g.GenerateForClient(context.Background(), 2, generator.Options{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(first.Text, "\n\nMay every day bring you joy and new achievements!"))

	second, err := g.GenerateForClient(context.Background(), 2, generator.Options{})
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, int32(1), repo.gets.Load(), "Second call must be served from cache")
}

func TestGenerateForClient_BypassOverwritesCache(t *testing.T) {
	g := newGenerator(t, roster(), &seqRand{f: 0.9})
	ctx := context.Background()

	cached, err := g.GenerateForClient(ctx, 2, generator.Options{})
	require.NoError(t, err)

	fresh, err := g.GenerateForClient(ctx, 2, generator.Options{SkipCache: true})
	require.NoError(t, err)
	assert.NotEqual(t, cached.Text, fresh.Text, "Second wish index differs")

	again, err := g.GenerateForClient(ctx, 2, generator.Options{})
	require.NoError(t, err)
	assert.Equal(t, fresh.Text, again.Text)
}

func TestGenerateForClient_ToneIsPartOfKey(t *testing.T) {
	repo := roster()
	g := newGenerator(t, repo, generator.NoWish{})
	ctx := context.Background()

	_, err := g.GenerateForClient(ctx, 1, generator.Options{})
	require.NoError(t, err)
	_, err = g.GenerateForClient(ctx, 1, generator.Options{Tone: "friendly"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.gets.Load())
}

func TestGenerateForClient_ConcurrentMissesShareWork(t *testing.T) {
	repo := roster()
	g := newGenerator(t, repo, generator.NoWish{})

	var wg sync.WaitGroup
	texts := make([]string, 16)
	for i := range texts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := g.GenerateForClient(context.Background(), 1, generator.Options{})
			assert.NoError(t, err)
			texts[i] = r.Text
		}(i)
	}
	wg.Wait()

	for _, text := range texts {
		assert.Equal(t, texts[0], text)
	}
	assert.LessOrEqual(t, repo.gets.Load(), int32(len(texts)))
}

func TestBatchGenerate_PartialFailure(t *testing.T) {
	g := newGenerator(t, roster(), generator.NoWish{})

	batch := g.BatchGenerate(context.Background(), []int64{1, 42, 2}, "")
	assert.Equal(t, 2, batch.Successful)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Results, 3)

	assert.True(t, batch.Results[0].Success)
	assert.Equal(t, int64(1), batch.Results[0].Result.ClientID)

	assert.False(t, batch.Results[1].Success)
	assert.Equal(t, int64(42), batch.Results[1].ClientID)
	assert.Nil(t, batch.Results[1].Result)
	assert.Contains(t, batch.Results[1].Error, "42")

	assert.True(t, batch.Results[2].Success)
}

func TestClearAndInvalidate(t *testing.T) {
	repo := roster()
	g := newGenerator(t, repo, generator.NoWish{})
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		_, err := g.GenerateForClient(ctx, id, generator.Options{})
		require.NoError(t, err)
	}
	require.Equal(t, int32(2), repo.gets.Load())

	require.NoError(t, g.Invalidate(ctx, 1))
	_, _ = g.GenerateForClient(ctx, 1, generator.Options{})
	_, _ = g.GenerateForClient(ctx, 2, generator.Options{})
	assert.Equal(t, int32(3), repo.gets.Load(), "Only client 1 was regenerated")

	require.NoError(t, g.ClearCache(ctx))
	_, _ = g.GenerateForClient(ctx, 2, generator.Options{})
	assert.Equal(t, int32(4), repo.gets.Load())
}

func TestAIRenderer(t *testing.T) {
	cat, err := generator.NewCatalog("en")
	require.NoError(t, err)
	tmpl := &generator.TemplateRenderer{Catalog: cat}
	rc := generator.BuildContext(
		client.Client{ID: 5, FirstName: "Eva", LastName: "Stone", Birthday: client.NewDate(1990, time.May, 1)},
		config.EventBirthday, "", "", today, generator.Fallbacks{},
	)
	base, method := tmpl.Render(context.Background(), rc)
	require.Equal(t, config.MethodTemplate, method)

	t.Run("unconfigured backend falls back with marker", func(t *testing.T) {
		ai := &generator.AIRenderer{Fallback: tmpl}
		text, method := ai.Render(context.Background(), rc)
		assert.Equal(t, config.MethodAI, method)
		assert.Equal(t, base+"\n\n[Text generated with AI assistance]", text)
	})

	t.Run("failing backend falls back", func(t *testing.T) {
		c := new(MockCompleter)
		c.On("Complete", mock.Anything, rc).Return("", errors.New("quota exceeded"))
		ai := &generator.AIRenderer{Completer: c, Fallback: tmpl}

		text, _ := ai.Render(context.Background(), rc)
		assert.True(t, strings.HasPrefix(text, base))
		c.AssertExpectations(t)
	})

	t.Run("backend text is used as is", func(t *testing.T) {
		c := new(MockCompleter)
		c.On("Complete", mock.Anything, rc).Return("Happy birthday from the model", nil)
		ai := &generator.AIRenderer{Completer: c, Fallback: tmpl}

		text, method := ai.Render(context.Background(), rc)
		assert.Equal(t, "Happy birthday from the model", text)
		assert.Equal(t, config.MethodAI, method)
	})
}

func TestNewRenderer(t *testing.T) {
	cat, err := generator.NewCatalog("en")
	require.NoError(t, err)

	_, isTmpl := generator.NewRenderer(cat, config.GeneratorSettings{UseAI: true}, nil).(*generator.TemplateRenderer)
	assert.True(t, isTmpl, "AI without a key stays on templates")

	_, isAI := generator.NewRenderer(cat, config.GeneratorSettings{UseAI: true, AIAPIKey: "k"}, nil).(*generator.AIRenderer)
	assert.True(t, isAI)
}
