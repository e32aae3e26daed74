package tasks

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
)

// AnalysisFunc is a custom analysis supplied through params under
// "analysis_function".
type AnalysisFunc func(data any) (map[string]any, error)

// AnalysisTask inspects its input and reports what it finds. The analysis
// type selects the lens: basic shape information, statistics over numeric
// elements, text measurements, or a custom function.
type AnalysisTask struct {
	name        string
	description string
	priority    Priority
}

var _ Task = &AnalysisTask{}

func NewAnalysisTask(opts TaskOptions) *AnalysisTask {
	opts = opts.withDefaults("Analysis Task", "Perform analysis on input data")
	return &AnalysisTask{
		name:        opts.Name,
		description: opts.Description,
		priority:    opts.Priority,
	}
}

func (t *AnalysisTask) Name() string        { return t.name }
func (t *AnalysisTask) Description() string { return t.description }
func (t *AnalysisTask) Priority() Priority  { return t.priority }

func (t *AnalysisTask) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	data, ok := params["data"]
	if !ok || data == nil {
		return Failed("no input data provided for analysis"), nil
	}

	analysisType, _ := params["analysis_type"].(string)
	if analysisType == "" {
		analysisType = "basic"
	}

	var analysis map[string]any
	switch analysisType {
	case "basic":
		analysis = basicAnalysis(data)
	case "statistical":
		analysis = statisticalAnalysis(data)
	case "text":
		analysis = textAnalysis(data)
	case "custom":
		custom, ok := params["analysis_function"].(AnalysisFunc)
		if !ok {
			return Failed("custom analysis function not provided"), nil
		}
		result, err := custom(data)
		if err != nil {
			return Failed("analysis failed: %s", err), nil
		}
		analysis = result
	default:
		return Failed("unknown analysis type: %s", analysisType), nil
	}

	return &Result{
		Success: true,
		Data:    analysis,
		Metadata: map[string]any{
			"analysis_type": analysisType,
			"input_size":    lengthOf(data),
		},
	}, nil
}

func basicAnalysis(data any) map[string]any {
	analysis := map[string]any{
		"data_type": typeName(data),
		"timestamp": time.Now().UTC(),
	}

	switch v := data.(type) {
	case string:
		analysis["length"] = len(v)
		analysis["character_count"] = len(v)
		analysis["word_count"] = len(strings.Fields(v))
		analysis["line_count"] = len(strings.Split(v, "\n"))
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		analysis["length"] = len(v)
		analysis["keys"] = keys
		analysis["key_count"] = len(keys)
	default:
		if rows, ok := anyRows(data); ok {
			analysis["length"] = len(rows)
			types := map[string]bool{}
			for _, row := range rows {
				types[typeName(row)] = true
			}
			names := make([]string, 0, len(types))
			for name := range types {
				names = append(names, name)
			}
			sort.Strings(names)
			analysis["element_types"] = names
			if len(rows) > 0 {
				analysis["first_element"] = rows[0]
				analysis["last_element"] = rows[len(rows)-1]
			}
		}
	}
	return analysis
}

func statisticalAnalysis(data any) map[string]any {
	analysis := map[string]any{"analysis_type": "statistical"}

	if n, ok := toFloat64(data); ok {
		analysis["value"] = n
		analysis["type"] = "single_number"
		analysis["absolute_value"] = math.Abs(n)
		analysis["is_positive"] = n > 0
		analysis["is_negative"] = n < 0
		analysis["is_zero"] = n == 0
		return analysis
	}

	rows, ok := anyRows(data)
	if !ok {
		analysis["error"] = "statistical analysis not applicable to " + typeName(data)
		return analysis
	}

	var numbers []float64
	for _, row := range rows {
		if n, isNum := toFloat64(row); isNum {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) == 0 {
		analysis["error"] = "no numerical data found for statistical analysis"
		return analysis
	}

	var sum float64
	min, max := numbers[0], numbers[0]
	for _, n := range numbers {
		sum += n
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
	}
	mean := sum / float64(len(numbers))

	var variance float64
	for _, n := range numbers {
		variance += (n - mean) * (n - mean)
	}
	variance /= float64(len(numbers))

	sorted := append([]float64{}, numbers...)
	sort.Float64s(sorted)
	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	analysis["count"] = len(numbers)
	analysis["sum"] = sum
	analysis["mean"] = mean
	analysis["median"] = median
	analysis["min"] = min
	analysis["max"] = max
	analysis["range"] = max - min
	analysis["stddev"] = math.Sqrt(variance)
	return analysis
}

func textAnalysis(data any) map[string]any {
	analysis := map[string]any{"analysis_type": "text"}

	switch v := data.(type) {
	case string:
		words := strings.Fields(v)
		lines := strings.Split(v, "\n")
		paragraphs := 0
		for _, p := range strings.Split(v, "\n\n") {
			if strings.TrimSpace(p) != "" {
				paragraphs++
			}
		}

		totalWordLen := 0
		longest, shortest := "", ""
		unique := map[string]bool{}
		freq := map[string]int{}
		for _, word := range words {
			totalWordLen += len(word)
			if longest == "" || len(word) > len(longest) {
				longest = word
			}
			if shortest == "" || len(word) < len(shortest) {
				shortest = word
			}
			lower := strings.ToLower(word)
			unique[lower] = true
			freq[strings.Trim(lower, `.,!?";:`)]++
		}
		averageWordLength := 0.0
		if len(words) > 0 {
			averageWordLength = float64(totalWordLen) / float64(len(words))
		}

		analysis["character_count"] = len(v)
		analysis["character_count_no_spaces"] = len(strings.ReplaceAll(v, " ", ""))
		analysis["word_count"] = len(words)
		analysis["line_count"] = len(lines)
		analysis["paragraph_count"] = paragraphs
		analysis["average_word_length"] = averageWordLength
		analysis["longest_word"] = longest
		analysis["shortest_word"] = shortest
		analysis["unique_words"] = len(unique)
		analysis["is_empty"] = strings.TrimSpace(v) == ""
		analysis["starts_with_uppercase"] = startsWithUpper(v)
		analysis["contains_numbers"] = strings.ContainsFunc(v, unicode.IsDigit)
		analysis["contains_special_chars"] = containsSpecial(v)
		analysis["top_words"] = topWords(freq, 10)

	default:
		rows, ok := anyRows(data)
		if !ok || !allStrings(rows) {
			analysis["error"] = "text analysis not applicable to " + typeName(data)
			return analysis
		}
		totalChars, totalWords, empty := 0, 0, 0
		longest, shortest := "", ""
		first := true
		for _, row := range rows {
			s := row.(string)
			totalChars += len(s)
			totalWords += len(strings.Fields(s))
			if strings.TrimSpace(s) == "" {
				empty++
			}
			if first || len(s) > len(longest) {
				longest = s
			}
			if first || len(s) < len(shortest) {
				shortest = s
			}
			first = false
		}
		averageLength := 0.0
		if len(rows) > 0 {
			averageLength = float64(totalChars) / float64(len(rows))
		}
		analysis["string_count"] = len(rows)
		analysis["total_characters"] = totalChars
		analysis["total_words"] = totalWords
		analysis["average_string_length"] = averageLength
		analysis["longest_string"] = longest
		analysis["shortest_string"] = shortest
		analysis["empty_strings"] = empty
	}
	return analysis
}

// WordCount pairs a word with how often it appeared.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// topWords returns the n most frequent words, most frequent first, ties
// broken alphabetically so the output is deterministic.
func topWords(freq map[string]int, n int) []WordCount {
	counts := make([]WordCount, 0, len(freq))
	for word, count := range freq {
		counts = append(counts, WordCount{Word: word, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Word < counts[j].Word
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

func startsWithUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

func containsSpecial(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

func allStrings(rows []any) bool {
	for _, row := range rows {
		if _, ok := row.(string); !ok {
			return false
		}
	}
	return true
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "nil"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int32, int64:
		return "int"
	case float32, float64:
		return "float"
	case map[string]any:
		return "map"
	case []any, []string, []int, []float64, []map[string]any:
		return "list"
	}
	return "unknown"
}
