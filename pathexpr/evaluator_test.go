package pathexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testData mimics a decoded JSON payload behind a canvas: a portfolio
// summary with nested holdings and a plain numeric series.
func testData() map[string]any {
	return map[string]any{
		"portfolio": map[string]any{
			"name":       "Growth Fund",
			"totalValue": 2450000.0,
			"holdings": []any{
				map[string]any{"symbol": "ACME", "sector": "tech", "value": 1200000.0, "shares": 300.0},
				map[string]any{"symbol": "GLOBEX", "sector": "energy", "value": 800000.0, "shares": 150.0},
				map[string]any{"symbol": "INITECH", "sector": "tech", "value": 450000.0, "shares": 75.0},
			},
		},
		"metrics": map[string]any{
			"scores": []any{4.5, 3.0, 5.0, "n/a"},
			"empty":  []any{},
			"labels": []any{"alpha", "beta"},
		},
		"length": "not a reducer here",
	}
}

func TestEval_PropertyAccess(t *testing.T) {
	data := testData()

	tests := []struct {
		name     string
		path     string
		expected any
	}{
		{name: "top_level", path: "portfolio", expected: data["portfolio"]},
		{name: "nested_scalar", path: "portfolio.totalValue", expected: 2450000.0},
		{name: "nested_string", path: "portfolio.name", expected: "Growth Fund"},
		{name: "map_key_shadowing_reducer", path: "length", expected: "not a reducer here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Eval(data))
		})
	}
}

func TestEval_MissingValuesAreUndefined(t *testing.T) {
	data := testData()

	tests := []struct {
		name string
		path string
	}{
		{name: "missing_top_level", path: "nonexistent"},
		{name: "missing_intermediate", path: "portfolio.missing.deeper.value"},
		{name: "property_on_scalar", path: "portfolio.totalValue.anything"},
		{name: "property_on_array", path: "portfolio.holdings.symbol"},
		{name: "index_out_of_range", path: "portfolio.holdings[99]"},
		{name: "negative_index", path: "portfolio.holdings[-1]"},
		{name: "index_on_map", path: "portfolio[0]"},
		{name: "index_on_scalar", path: "portfolio.totalValue[0]"},
		{name: "filter_on_map", path: "portfolio.filter(sector=tech)"},
		{name: "filter_on_scalar", path: "portfolio.name.filter(a=b)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.path)
			require.NoError(t, err)
			assert.Nil(t, p.Eval(data))
		})
	}

	t.Run("nil_data", func(t *testing.T) {
		p, err := Parse("anything.at.all")
		require.NoError(t, err)
		assert.Nil(t, p.Eval(nil))
	})
}

func TestEval_Indexing(t *testing.T) {
	data := testData()

	p, err := Parse("portfolio.holdings[1].symbol")
	require.NoError(t, err)
	assert.Equal(t, "GLOBEX", p.Eval(data))

	p, err = Parse("metrics.scores[0]")
	require.NoError(t, err)
	assert.Equal(t, 4.5, p.Eval(data))
}

func TestEval_Filter(t *testing.T) {
	data := testData()

	t.Run("keeps_matching_elements", func(t *testing.T) {
		p, err := Parse("portfolio.holdings.filter(sector=tech)")
		require.NoError(t, err)

		result, ok := p.Eval(data).([]any)
		require.True(t, ok)
		require.Len(t, result, 2)
		assert.Equal(t, "ACME", result[0].(map[string]any)["symbol"])
		assert.Equal(t, "INITECH", result[1].(map[string]any)["symbol"])
	})

	t.Run("stringified_comparison_matches_numbers", func(t *testing.T) {
		// shares is 300.0 in the data; %v renders it as "300"
		p, err := Parse("portfolio.holdings.filter(shares=300).length")
		require.NoError(t, err)
		assert.Equal(t, 1, p.Eval(data))
	})

	t.Run("no_matches_yields_empty_array", func(t *testing.T) {
		p, err := Parse("portfolio.holdings.filter(sector=finance)")
		require.NoError(t, err)

		result, ok := p.Eval(data).([]any)
		require.True(t, ok)
		assert.Empty(t, result)
	})

	t.Run("skips_non_object_elements", func(t *testing.T) {
		p, err := Parse("metrics.scores.filter(v=1).length")
		require.NoError(t, err)
		assert.Equal(t, 0, p.Eval(data))
	})

	t.Run("filter_result_feeds_reducer", func(t *testing.T) {
		p, err := Parse("portfolio.holdings.filter(sector=energy).length")
		require.NoError(t, err)
		assert.Equal(t, 1, p.Eval(data))
	})
}

func TestEval_FilterDoesNotParseIndexes(t *testing.T) {
	_, err := Parse("holdings.filter(sector=tech)[1]")
	assert.Error(t, err)
}

func TestEval_Reducers(t *testing.T) {
	data := testData()

	tests := []struct {
		name     string
		path     string
		expected any
	}{
		{name: "length_counts_all_elements", path: "metrics.scores.length", expected: 4},
		{name: "length_on_filtered", path: "portfolio.holdings.filter(sector=tech).length", expected: 2},
		{name: "length_on_string", path: "portfolio.name.length", expected: 11},
		{name: "sum_skips_non_numeric", path: "metrics.scores.sum", expected: 12.5},
		{name: "average_skips_non_numeric", path: "metrics.scores.average", expected: 12.5 / 3.0},
		{name: "max", path: "metrics.scores.max", expected: 5.0},
		{name: "min", path: "metrics.scores.min", expected: 3.0},
		{name: "sum_of_empty_is_zero", path: "metrics.empty.sum", expected: 0.0},
		{name: "length_of_empty", path: "metrics.empty.length", expected: 0},
		{name: "average_of_empty_is_undefined", path: "metrics.empty.average", expected: nil},
		{name: "max_of_empty_is_undefined", path: "metrics.empty.max", expected: nil},
		{name: "min_of_empty_is_undefined", path: "metrics.empty.min", expected: nil},
		{name: "average_all_non_numeric_is_undefined", path: "metrics.labels.average", expected: nil},
		{name: "sum_all_non_numeric_is_zero", path: "metrics.labels.sum", expected: 0.0},
		{name: "index_into_reducer_result", path: "metrics.scores.max[0]", expected: nil},
		{name: "unknown_field_on_array", path: "metrics.scores.median", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Eval(data))
		})
	}
}

func TestEval_UnicodeStringLength(t *testing.T) {
	data := map[string]any{"label": "héllo"}

	p, err := Parse("label.length")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Eval(data), "length counts characters, not bytes")
}

func TestEval_DoesNotMutateInput(t *testing.T) {
	data := testData()
	holdings := data["portfolio"].(map[string]any)["holdings"].([]any)
	originalLen := len(holdings)

	p, err := Parse("portfolio.holdings.filter(sector=tech)")
	require.NoError(t, err)
	_ = p.Eval(data)

	assert.Len(t, data["portfolio"].(map[string]any)["holdings"], originalLen)
}

func TestEval_Deterministic(t *testing.T) {
	data := testData()
	p, err := Parse("portfolio.holdings.filter(sector=tech).length")
	require.NoError(t, err)

	first := p.Eval(data)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, p.Eval(data))
	}
}

func TestEvaluate(t *testing.T) {
	data := testData()

	t.Run("parses_and_evaluates", func(t *testing.T) {
		value, err := Evaluate(data, "portfolio.totalValue")
		require.NoError(t, err)
		assert.Equal(t, 2450000.0, value)
	})

	t.Run("missing_value_is_nil_not_error", func(t *testing.T) {
		value, err := Evaluate(data, "portfolio.missing")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("parse_error_propagates", func(t *testing.T) {
		_, err := Evaluate(data, "a..b")
		assert.Error(t, err)
	})
}

func BenchmarkEval(b *testing.B) {
	data := testData()
	p, err := Parse("portfolio.holdings.filter(sector=tech).length")
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Eval(data)
	}
}

func BenchmarkEvaluateCached(b *testing.B) {
	data := testData()
	clearCache()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Evaluate(data, "portfolio.totalValue"); err != nil {
			b.Fatal(err)
		}
	}
}
