package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataProcessingRequiresData(t *testing.T) {
	task := NewDataProcessingTask(TaskOptions{})
	result, err := task.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "no input data provided", result.Error)
}

func TestDataProcessingPassthrough(t *testing.T) {
	task := NewDataProcessingTask(TaskOptions{Name: "copy"})
	require.Equal(t, "copy", task.Name())
	require.Equal(t, PriorityNormal, task.Priority())

	result, err := task.Execute(context.Background(), map[string]any{
		"data": []any{1, 2, 3},
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, []any{1, 2, 3}, result.Data)
	require.Equal(t, 3, result.Metadata["original_data_size"])
	require.Equal(t, 3, result.Metadata["processed_data_size"])

	applied, ok := result.Metadata["operations_applied"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, applied, 1)
	require.Equal(t, "passthrough", applied[0]["operation"])
}

func TestDataProcessingFilter(t *testing.T) {
	rows := []map[string]any{
		{"name": "api", "status": "active"},
		{"name": "worker", "status": "stopped"},
		{"name": "scheduler", "status": "active"},
	}
	task := NewDataProcessingTask(TaskOptions{})
	result, err := task.Execute(context.Background(), map[string]any{
		"data":            rows,
		"operations":      []string{"filter"},
		"filter_criteria": map[string]any{"status": "active"},
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, []any{
		map[string]any{"name": "api", "status": "active"},
		map[string]any{"name": "scheduler", "status": "active"},
	}, result.Data)
	require.Equal(t, 2, result.Metadata["processed_data_size"])
}

func TestDataProcessingFilterNoMatches(t *testing.T) {
	task := NewDataProcessingTask(TaskOptions{})
	result, err := task.Execute(context.Background(), map[string]any{
		"data":            []map[string]any{{"status": "stopped"}},
		"operations":      []string{"filter"},
		"filter_criteria": map[string]any{"status": "active"},
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, []any{}, result.Data)
}

func TestDataProcessingFilterKeepsNonMapRows(t *testing.T) {
	task := NewDataProcessingTask(TaskOptions{})
	result, err := task.Execute(context.Background(), map[string]any{
		"data":            []any{"loose value", map[string]any{"status": "stopped"}},
		"operations":      []string{"filter"},
		"filter_criteria": map[string]any{"status": "active"},
	})
	require.NoError(t, err)
	require.Equal(t, []any{"loose value"}, result.Data)
}

func TestDataProcessingTransform(t *testing.T) {
	task := NewDataProcessingTask(TaskOptions{})
	result, err := task.Execute(context.Background(), map[string]any{
		"data":       []int{1, 2, 3},
		"operations": []string{"transform"},
		"transform_function": TransformFunc(func(v any) any {
			n, _ := toFloat64(v)
			return n * 2
		}),
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, []any{2.0, 4.0, 6.0}, result.Data)
}

func TestDataProcessingAggregate(t *testing.T) {
	tests := []struct {
		function string
		want     map[string]any
	}{
		{"sum", map[string]any{"sum": 6.0}},
		{"avg", map[string]any{"average": 2.0}},
		{"min", map[string]any{"minimum": 1.0}},
		{"max", map[string]any{"maximum": 3.0}},
		{"count", map[string]any{"count": 3}},
	}
	task := NewDataProcessingTask(TaskOptions{})
	for _, tt := range tests {
		t.Run(tt.function, func(t *testing.T) {
			result, err := task.Execute(context.Background(), map[string]any{
				"data":                 []any{1, 2, 3},
				"operations":           []string{"aggregate"},
				"aggregation_function": tt.function,
			})
			require.NoError(t, err)
			require.True(t, result.Success)
			require.Equal(t, tt.want, result.Data)
		})
	}
}

func TestDataProcessingAggregateNonNumeric(t *testing.T) {
	task := NewDataProcessingTask(TaskOptions{})
	result, err := task.Execute(context.Background(), map[string]any{
		"data":                 []any{"a", "b", 3},
		"operations":           []string{"aggregate"},
		"aggregation_function": "sum",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, map[string]any{"count": 3}, result.Data)
}

func TestDataProcessingSortByKey(t *testing.T) {
	rows := []map[string]any{
		{"name": "c", "rank": 3},
		{"name": "a", "rank": 1},
		{"name": "b", "rank": 2},
	}
	task := NewDataProcessingTask(TaskOptions{})

	result, err := task.Execute(context.Background(), map[string]any{
		"data":       rows,
		"operations": []string{"sort"},
		"sort_key":   "rank",
	})
	require.NoError(t, err)
	sorted := result.Data.([]any)
	require.Equal(t, "a", sorted[0].(map[string]any)["name"])
	require.Equal(t, "b", sorted[1].(map[string]any)["name"])
	require.Equal(t, "c", sorted[2].(map[string]any)["name"])

	result, err = task.Execute(context.Background(), map[string]any{
		"data":       rows,
		"operations": []string{"sort"},
		"sort_key":   "rank",
		"reverse":    true,
	})
	require.NoError(t, err)
	sorted = result.Data.([]any)
	require.Equal(t, "c", sorted[0].(map[string]any)["name"])
	require.Equal(t, "a", sorted[2].(map[string]any)["name"])
}

func TestDataProcessingSortMixedScalars(t *testing.T) {
	task := NewDataProcessingTask(TaskOptions{})
	result, err := task.Execute(context.Background(), map[string]any{
		"data":       []any{"pear", 10, "apple", 2},
		"operations": []string{"sort"},
	})
	require.NoError(t, err)
	require.Equal(t, []any{2, 10, "apple", "pear"}, result.Data)
}

func TestDataProcessingValidate(t *testing.T) {
	task := NewDataProcessingTask(TaskOptions{})

	result, err := task.Execute(context.Background(), map[string]any{
		"data":       []any{1, 2, 3},
		"operations": []string{"validate"},
		"validation_schema": map[string]any{
			"type":       "list",
			"min_length": 2,
			"max_length": 5,
		},
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	result, err = task.Execute(context.Background(), map[string]any{
		"data":       []any{1, 2, 3},
		"operations": []string{"validate"},
		"validation_schema": map[string]any{
			"type":       "map",
			"min_length": 5,
		},
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "data validation failed")
	require.Contains(t, result.Error, "expected map, got []interface {}")
	require.Contains(t, result.Error, "length 3 is less than minimum 5")
}

func TestDataProcessingValidateExpectedDiff(t *testing.T) {
	task := NewDataProcessingTask(TaskOptions{})
	result, err := task.Execute(context.Background(), map[string]any{
		"data":       map[string]any{"name": "cascade", "version": 2},
		"operations": []string{"validate"},
		"validation_schema": map[string]any{
			"expected": map[string]any{"name": "cascade", "version": 3},
		},
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "data does not match expected")
	require.Contains(t, result.Error, "--- expected")
	require.Contains(t, result.Error, "+++ actual")
	require.Contains(t, result.Error, `-  "version": 3`)
	require.Contains(t, result.Error, `+  "version": 2`)
}

func TestDataProcessingPipeline(t *testing.T) {
	rows := []map[string]any{
		{"name": "a", "status": "active", "score": 9},
		{"name": "b", "status": "stopped", "score": 5},
		{"name": "c", "status": "active", "score": 3},
	}
	task := NewDataProcessingTask(TaskOptions{})
	result, err := task.Execute(context.Background(), map[string]any{
		"data":                 rows,
		"operations":           []string{"filter", "sort", "aggregate"},
		"filter_criteria":      map[string]any{"status": "active"},
		"sort_key":             "score",
		"aggregation_function": "count",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, map[string]any{"count": 2}, result.Data)
	require.Equal(t, 3, result.Metadata["original_data_size"])

	applied := result.Metadata["operations_applied"].([]map[string]any)
	require.Len(t, applied, 3)
	require.Equal(t, "filter", applied[0]["operation"])
	require.Equal(t, "sort", applied[1]["operation"])
	require.Equal(t, "aggregate", applied[2]["operation"])
}

func TestDataProcessingCustomOperation(t *testing.T) {
	task := NewDataProcessingTask(TaskOptions{})
	result, err := task.Execute(context.Background(), map[string]any{
		"data":       21,
		"operations": []string{"double"},
		"double_function": TransformFunc(func(v any) any {
			n, _ := toFloat64(v)
			return n * 2
		}),
	})
	require.NoError(t, err)
	require.Equal(t, 42.0, result.Data)
}

func TestDataProcessingUnknownOperationIgnored(t *testing.T) {
	task := NewDataProcessingTask(TaskOptions{})
	result, err := task.Execute(context.Background(), map[string]any{
		"data":       []any{1, 2},
		"operations": []string{"bogus"},
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, []any{1, 2}, result.Data)
}
