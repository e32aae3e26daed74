package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/deepnoodle-ai/cascade/slogger"
	"github.com/pmezard/go-difflib/difflib"
)

// TransformFunc rewrites a single data element.
type TransformFunc func(any) any

// DataProcessingTask applies a pipeline of operations to its input data.
// Supported operations: passthrough, filter, transform, aggregate, sort,
// and validate. Unknown operations fall back to a custom function supplied
// in params under "<operation>_function".
type DataProcessingTask struct {
	name        string
	description string
	priority    Priority
}

var _ Task = &DataProcessingTask{}

func NewDataProcessingTask(opts TaskOptions) *DataProcessingTask {
	opts = opts.withDefaults("Data Processing Task", "Process data using specified operations")
	return &DataProcessingTask{
		name:        opts.Name,
		description: opts.Description,
		priority:    opts.Priority,
	}
}

func (t *DataProcessingTask) Name() string        { return t.name }
func (t *DataProcessingTask) Description() string { return t.description }
func (t *DataProcessingTask) Priority() Priority  { return t.priority }

// Execute runs the operations listed in params["operations"] (default
// passthrough) over params["data"], threading the output of each operation
// into the next.
func (t *DataProcessingTask) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	data, ok := params["data"]
	if !ok || data == nil {
		return Failed("no input data provided"), nil
	}

	operations := stringList(params["operations"])
	if len(operations) == 0 {
		operations = []string{"passthrough"}
	}

	processed := data
	var applied []map[string]any
	for _, operation := range operations {
		switch operation {
		case "passthrough":
		case "filter":
			criteria, _ := params["filter_criteria"].(map[string]any)
			processed = filterRows(processed, criteria)
		case "transform":
			if transform, ok := params["transform_function"].(TransformFunc); ok {
				processed = transformData(processed, transform)
			}
		case "aggregate":
			function, _ := params["aggregation_function"].(string)
			if function == "" {
				function = "count"
			}
			processed = aggregateData(processed, function)
		case "sort":
			key, _ := params["sort_key"].(string)
			reverse, _ := params["reverse"].(bool)
			processed = sortData(processed, key, reverse)
		case "validate":
			schema, _ := params["validation_schema"].(map[string]any)
			if errs := validateData(processed, schema); len(errs) > 0 {
				return Failed("data validation failed: %s", strings.Join(errs, "; ")), nil
			}
		default:
			if custom, ok := params[operation+"_function"].(TransformFunc); ok {
				processed = custom(processed)
			} else {
				slogger.Ctx(ctx).Warn("unknown data operation", "operation", operation)
			}
		}
		applied = append(applied, map[string]any{
			"operation": operation,
			"success":   true,
			"data_size": lengthOf(processed),
		})
	}

	return &Result{
		Success: true,
		Data:    processed,
		Metadata: map[string]any{
			"original_data_size":  lengthOf(data),
			"processed_data_size": lengthOf(processed),
			"operations_applied":  applied,
		},
	}, nil
}

// filterRows keeps the rows matching all criteria. Non-map rows pass
// through untouched; non-list data is returned as is.
func filterRows(data any, criteria map[string]any) any {
	rows, ok := anyRows(data)
	if !ok || len(criteria) == 0 {
		return data
	}
	var filtered []any
	for _, row := range rows {
		m, isMap := row.(map[string]any)
		if !isMap {
			filtered = append(filtered, row)
			continue
		}
		match := true
		for key, want := range criteria {
			if !reflect.DeepEqual(m[key], want) {
				match = false
				break
			}
		}
		if match {
			filtered = append(filtered, m)
		}
	}
	if filtered == nil {
		filtered = []any{}
	}
	return filtered
}

func transformData(data any, transform TransformFunc) any {
	rows, ok := anyRows(data)
	if !ok {
		return transform(data)
	}
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = transform(row)
	}
	return out
}

func aggregateData(data any, function string) any {
	rows, ok := anyRows(data)
	if !ok {
		return data
	}
	numbers := make([]float64, 0, len(rows))
	allNumeric := true
	for _, row := range rows {
		n, isNum := toFloat64(row)
		if !isNum {
			allNumeric = false
			break
		}
		numbers = append(numbers, n)
	}

	switch {
	case function == "sum" && allNumeric:
		var sum float64
		for _, n := range numbers {
			sum += n
		}
		return map[string]any{"sum": sum}
	case function == "avg" && allNumeric:
		if len(numbers) == 0 {
			return map[string]any{"average": 0.0}
		}
		var sum float64
		for _, n := range numbers {
			sum += n
		}
		return map[string]any{"average": sum / float64(len(numbers))}
	case function == "min" && allNumeric && len(numbers) > 0:
		min := numbers[0]
		for _, n := range numbers[1:] {
			if n < min {
				min = n
			}
		}
		return map[string]any{"minimum": min}
	case function == "max" && allNumeric && len(numbers) > 0:
		max := numbers[0]
		for _, n := range numbers[1:] {
			if n > max {
				max = n
			}
		}
		return map[string]any{"maximum": max}
	}
	return map[string]any{"count": len(rows)}
}

// sortData sorts a list. With a key, map rows are ordered by that key's
// value; otherwise elements are compared directly. Numbers sort before
// strings when types are mixed.
func sortData(data any, key string, reverse bool) any {
	rows, ok := anyRows(data)
	if !ok {
		return data
	}
	sorted := make([]any, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if key != "" {
			if m, isMap := a.(map[string]any); isMap {
				a = m[key]
			}
			if m, isMap := b.(map[string]any); isMap {
				b = m[key]
			}
		}
		if reverse {
			return compareValues(b, a)
		}
		return compareValues(a, b)
	})
	return sorted
}

// compareValues orders numbers numerically, strings lexically, numbers
// before strings, and everything else last.
func compareValues(a, b any) bool {
	an, aNum := toFloat64(a)
	bn, bNum := toFloat64(b)
	if aNum && bNum {
		return an < bn
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return as < bs
	}
	if aNum {
		return true
	}
	if bNum {
		return false
	}
	return false
}

// validateData checks data against a minimal schema: "type" (list, map,
// int, string), "min_length", "max_length", and "expected". An expected
// value mismatch produces a unified diff of the two JSON renderings.
func validateData(data any, schema map[string]any) []string {
	if len(schema) == 0 {
		return nil
	}
	var errs []string

	if want, ok := schema["type"].(string); ok {
		if err := checkType(data, want); err != "" {
			errs = append(errs, err)
		}
	}
	if min, ok := toFloat64(schema["min_length"]); ok {
		if n := lengthOf(data); float64(n) < min {
			errs = append(errs, fmt.Sprintf("length %d is less than minimum %d", n, int(min)))
		}
	}
	if max, ok := toFloat64(schema["max_length"]); ok {
		if n := lengthOf(data); float64(n) > max {
			errs = append(errs, fmt.Sprintf("length %d is greater than maximum %d", n, int(max)))
		}
	}
	if expected, ok := schema["expected"]; ok {
		if diff := diffAgainstExpected(data, expected); diff != "" {
			errs = append(errs, "data does not match expected:\n"+diff)
		}
	}
	return errs
}

func checkType(data any, want string) string {
	switch want {
	case "list":
		if _, ok := anyRows(data); !ok {
			return fmt.Sprintf("expected list, got %T", data)
		}
	case "map":
		if _, ok := data.(map[string]any); !ok {
			return fmt.Sprintf("expected map, got %T", data)
		}
	case "int":
		switch data.(type) {
		case int, int32, int64:
		default:
			return fmt.Sprintf("expected int, got %T", data)
		}
	case "string":
		if _, ok := data.(string); !ok {
			return fmt.Sprintf("expected string, got %T", data)
		}
	}
	return ""
}

// diffAgainstExpected renders both values as indented JSON and returns a
// unified diff, or "" when they are equal.
func diffAgainstExpected(data, expected any) string {
	if reflect.DeepEqual(data, expected) {
		return ""
	}
	got, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("got value of type %T, expected %T", data, expected)
	}
	want, err := json.MarshalIndent(expected, "", "  ")
	if err != nil {
		return fmt.Sprintf("got value of type %T, expected %T", data, expected)
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(want)),
		B:        difflib.SplitLines(string(got)),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  2,
	})
	if err != nil {
		return fmt.Sprintf("got value of type %T, expected %T", data, expected)
	}
	return diff
}

// anyRows normalizes the list shapes that reach tasks into []any.
func anyRows(data any) ([]any, bool) {
	switch v := data.(type) {
	case []any:
		return v, true
	case []map[string]any:
		rows := make([]any, len(v))
		for i, m := range v {
			rows[i] = m
		}
		return rows, true
	case []string:
		rows := make([]any, len(v))
		for i, s := range v {
			rows[i] = s
		}
		return rows, true
	case []int:
		rows := make([]any, len(v))
		for i, n := range v {
			rows[i] = n
		}
		return rows, true
	case []float64:
		rows := make([]any, len(v))
		for i, n := range v {
			rows[i] = n
		}
		return rows, true
	}
	return nil, false
}
