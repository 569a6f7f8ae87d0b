package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderhub/order-intake/internal/catalog"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Entry{
		{Name: "Onion", UnitSynonyms: []string{"bag"}},
		{Name: "Tomato", UnitSynonyms: []string{"box"}},
		{Name: "Rice", UnitSynonyms: []string{"bag"}},
		{Name: "Cola", UnitSynonyms: []string{"pc"}},
		{Name: "Broccoli", UnitSynonyms: []string{"kg"}},
	})
}

type fakeSuggester struct {
	answer string
	err    error
	calls  int
	tokens []string
}

func (f *fakeSuggester) Suggest(_ context.Context, token string, _ []string) (string, error) {
	f.calls++
	f.tokens = append(f.tokens, token)
	return f.answer, f.err
}

type hits []string

func (h *hits) ObserveResolverHit(strategy string) { *h = append(*h, strategy) }

func TestResolver_SpecialCaseWinsAndIsLocked(t *testing.T) {
	sugg := &fakeSuggester{answer: "Onion"}
	r := Default(catalog.DefaultSpecialCases(catalog.DefaultUnits()), sugg, 0, nil)

	res, ok := r.Resolve(context.Background(), "tom", testCatalog())

	require.True(t, ok)
	assert.Equal(t, "Tomato", res.Product)
	assert.Equal(t, "special_case", res.Strategy)
	assert.True(t, res.Locked)
	assert.False(t, res.Corrected)
	assert.Zero(t, sugg.calls)
}

func TestResolver_SuggestionBeforeLocalMatching(t *testing.T) {
	sugg := &fakeSuggester{answer: "Broccoli"}
	var h hits
	r := Default(catalog.SpecialCases{}, sugg, 0, nil).WithObserver(&h)

	res, ok := r.Resolve(context.Background(), "brocoli", testCatalog())

	require.True(t, ok)
	assert.Equal(t, "Broccoli", res.Product)
	assert.Equal(t, "suggest", res.Strategy)
	assert.True(t, res.Corrected)
	assert.Equal(t, hits{"suggest"}, h)
}

func TestResolver_SuggesterFailureFallsThrough(t *testing.T) {
	sugg := &fakeSuggester{err: errors.New("503")}
	r := Default(catalog.SpecialCases{}, sugg, 0, nil)

	res, ok := r.Resolve(context.Background(), "onyon", testCatalog())

	require.True(t, ok)
	assert.Equal(t, "Onion", res.Product)
	assert.Equal(t, "phonetic", res.Strategy)
	assert.Equal(t, []string{"suggest"}, res.Degraded)
}

func TestResolver_Unresolved(t *testing.T) {
	sugg := &fakeSuggester{answer: "none"}
	r := Default(catalog.SpecialCases{}, sugg, 0, nil)

	res, ok := r.Resolve(context.Background(), "carpet", testCatalog())

	assert.False(t, ok)
	assert.Empty(t, res.Product)
	assert.Empty(t, res.Degraded)
	assert.Equal(t, 1, sugg.calls)
}

func TestResolver_EmptyToken(t *testing.T) {
	sugg := &fakeSuggester{answer: "Onion"}
	_, ok := Default(catalog.SpecialCases{}, sugg, 0, nil).Resolve(context.Background(), "  ", testCatalog())
	assert.False(t, ok)
	assert.Zero(t, sugg.calls)
}

func TestResolver_CaseOnlyDifferenceIsNotACorrection(t *testing.T) {
	r := New(nil, PhoneticStrategy{})
	res, ok := r.Resolve(context.Background(), "onion", testCatalog())
	require.True(t, ok)
	assert.False(t, res.Corrected)
}

func TestSuggestionStrategy(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		err    error
		want   string
		ok     bool
		hasErr bool
	}{
		{name: "catalog member", answer: "Tomato", want: "Tomato", ok: true},
		{name: "different case is canonicalized", answer: "tomato", want: "Tomato", ok: true},
		{name: "not in catalog is discarded", answer: "Tomatillo"},
		{name: "none", answer: "none"},
		{name: "empty", answer: ""},
		{name: "error", err: errors.New("boom"), hasErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSuggestionStrategy(&fakeSuggester{answer: tt.answer, err: tt.err})

			got, ok, err := s.Resolve(context.Background(), "tomatoe", testCatalog())

			if tt.hasErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type slowSuggester struct{}

func (slowSuggester) Suggest(ctx context.Context, _ string, _ []string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(time.Second):
		return "Onion", nil
	}
}

func TestSuggestionStrategy_Timeout(t *testing.T) {
	s := NewSuggestionStrategy(slowSuggester{}).WithTimeout(20 * time.Millisecond)

	_, ok, err := s.Resolve(context.Background(), "onoin", testCatalog())

	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPhoneticStrategy(t *testing.T) {
	tests := []struct {
		token string
		want  string
		ok    bool
	}{
		{"onyon", "Onion", true},
		{"tomatoe", "Tomato", true},
		{"carpet", "", false},
		{"123", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok, err := PhoneticStrategy{}.Resolve(context.Background(), tt.token, testCatalog())
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFuzzyStrategy(t *testing.T) {
	f := NewFuzzyStrategy(DefaultFuzzyCutoff)
	tests := []struct {
		token string
		want  string
		ok    bool
	}{
		{"onoin", "Onion", true},
		{"tomatos", "Tomato", true},
		{"brocoli", "Broccoli", true},
		{"carpet", "", false},
		{"xqj", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok, err := f.Resolve(context.Background(), tt.token, testCatalog())
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFuzzyStrategy_NeverBelowCutoff(t *testing.T) {
	c := testCatalog()
	for _, cutoff := range []float64{25, 50, 80} {
		f := NewFuzzyStrategy(cutoff)
		for _, token := range []string{"onoin", "tomatos", "brocoli", "carpet", "cole", "rise"} {
			got, ok, err := f.Resolve(context.Background(), token, c)
			require.NoError(t, err)
			if ok {
				assert.GreaterOrEqual(t, Score(token, got), cutoff, "%s -> %s", token, got)
			}
		}
	}
}

func TestFuzzyStrategy_TiesGoToCatalogOrder(t *testing.T) {
	c := catalog.New([]catalog.Entry{{Name: "Pear"}, {Name: "Peas"}})
	got, ok, err := NewFuzzyStrategy(0).Resolve(context.Background(), "pea", c)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Pear", got)
}

func TestScore(t *testing.T) {
	assert.InDelta(t, 100, Score("Onion", "onion"), 0.001)
	assert.InDelta(t, 60, Score("onoin", "Onion"), 0.001)
	assert.InDelta(t, 95, Score("spring onion", "Onion Spring"), 0.001)
	assert.Zero(t, Score("", "Onion"))
}

type fakeKV struct {
	data   map[string]string
	getErr error
	ttls   map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestCachedSuggester_CachesPositiveAndNegativeAnswers(t *testing.T) {
	kv := newFakeKV()
	next := &fakeSuggester{answer: "Onion"}
	s := NewCachedSuggester(next, kv, time.Hour, nil)
	names := []string{"Onion", "Tomato"}

	for i := 0; i < 2; i++ {
		got, err := s.Suggest(context.Background(), "onoin", names)
		require.NoError(t, err)
		assert.Equal(t, "Onion", got)
	}
	assert.Equal(t, 1, next.calls)

	next.answer = "none"
	for i := 0; i < 2; i++ {
		got, err := s.Suggest(context.Background(), "carpet", names)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, 2, next.calls)

	for _, ttl := range kv.ttls {
		assert.Equal(t, time.Hour, ttl)
	}
}

func TestCachedSuggester_NegativeAnswerSameOnMissAndHit(t *testing.T) {
	for _, answer := range []string{"none", "None", "", "  "} {
		t.Run(answer, func(t *testing.T) {
			kv := newFakeKV()
			s := NewCachedSuggester(&fakeSuggester{answer: answer}, kv, 0, nil)

			miss, err := s.Suggest(context.Background(), "carpet", []string{"Onion"})
			require.NoError(t, err)
			hit, err := s.Suggest(context.Background(), "carpet", []string{"Onion"})
			require.NoError(t, err)

			assert.Equal(t, "", miss)
			assert.Equal(t, miss, hit)
		})
	}
}

func TestCachedSuggester_KeyedByCatalog(t *testing.T) {
	kv := newFakeKV()
	next := &fakeSuggester{answer: "Onion"}
	s := NewCachedSuggester(next, kv, 0, nil)

	_, _ = s.Suggest(context.Background(), "onoin", []string{"Onion"})
	_, _ = s.Suggest(context.Background(), "onoin", []string{"Onion", "Rice"})

	assert.Equal(t, 2, next.calls)
	assert.NotEqual(t, suggestionKey("onoin", []string{"Onion"}), suggestionKey("onoin", []string{"Onion", "Rice"}))
	assert.Equal(t, suggestionKey("ONOIN", []string{"Onion"}), suggestionKey("onoin ", []string{"Onion"}))
}

func TestCachedSuggester_RedisDownGoesThrough(t *testing.T) {
	kv := newFakeKV()
	kv.getErr = errors.New("connection refused")
	next := &fakeSuggester{answer: "Rice"}

	got, err := NewCachedSuggester(next, kv, 0, nil).Suggest(context.Background(), "rise", []string{"Rice"})

	require.NoError(t, err)
	assert.Equal(t, "Rice", got)
	assert.Equal(t, 1, next.calls)
}

func TestCachedSuggester_ErrorsAreNotCached(t *testing.T) {
	kv := newFakeKV()
	next := &fakeSuggester{err: errors.New("timeout")}

	_, err := NewCachedSuggester(next, kv, 0, nil).Suggest(context.Background(), "rise", []string{"Rice"})

	require.Error(t, err)
	assert.Empty(t, kv.data)
}
