package tasks

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"

	"github.com/deepnoodle-ai/cascade/internal/random"
)

// DecisionTask selects one option from a candidate list. Supported
// decision types are "simple" (first option meeting the criteria),
// "weighted" (scored against criteria with per-criterion weights),
// "random", and "rule_based" (filter and sort rules applied in order).
type DecisionTask struct {
	name        string
	description string
	priority    Priority
}

var _ Task = &DecisionTask{}

func NewDecisionTask(opts TaskOptions) *DecisionTask {
	opts = opts.withDefaults("Decision Task", "Make decisions based on input criteria")
	return &DecisionTask{
		name:        opts.Name,
		description: opts.Description,
		priority:    opts.Priority,
	}
}

func (t *DecisionTask) Name() string        { return t.name }
func (t *DecisionTask) Description() string { return t.description }
func (t *DecisionTask) Priority() Priority  { return t.priority }

func (t *DecisionTask) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	options, _ := anyRows(params["options"])
	if len(options) == 0 {
		return Failed("no options provided for decision making"), nil
	}
	criteria, _ := params["criteria"].(map[string]any)
	decisionType, _ := params["decision_type"].(string)
	if decisionType == "" {
		decisionType = "simple"
	}

	var decision map[string]any
	switch decisionType {
	case "simple":
		decision = simpleDecision(options, criteria)
	case "weighted":
		weights, _ := params["weights"].(map[string]any)
		decision = weightedDecision(options, criteria, weights)
	case "random":
		decision = randomDecision(options)
	case "rule_based":
		rules, _ := anyRows(params["rules"])
		decision = ruleBasedDecision(options, rules)
	default:
		return Failed("unknown decision type: %s", decisionType), nil
	}

	return &Result{
		Success: true,
		Data:    decision,
		Metadata: map[string]any{
			"decision_type":  decisionType,
			"options_count":  len(options),
			"criteria_count": len(criteria),
		},
	}, nil
}

// simpleDecision picks the first option satisfying every criterion, or the
// first option overall when none match.
func simpleDecision(options []any, criteria map[string]any) map[string]any {
	selected := options[0]
	reasons := []string{"default selection (first option)"}
	if len(criteria) > 0 {
		for _, option := range options {
			if fields, ok := option.(map[string]any); ok && meetsCriteria(fields, criteria) {
				selected = option
				reasons = []string{fmt.Sprintf("meets criteria: %v", criteria)}
				break
			}
		}
	}
	return map[string]any{
		"selected_option": selected,
		"decision_method": "simple",
		"reasons":         reasons,
		"timestamp":       time.Now().UTC(),
	}
}

func weightedDecision(options []any, criteria, weights map[string]any) map[string]any {
	scores := make([]map[string]any, 0, len(options))
	for i, option := range options {
		total := 0.0
		details := map[string]any{}
		if fields, ok := option.(map[string]any); ok {
			for criterion, target := range criteria {
				weight := 1.0
				if w, ok := toFloat64(weights[criterion]); ok {
					weight = w
				}
				value, ok := fields[criterion]
				if !ok {
					value = 0
				}
				score := criterionScore(value, target)
				weighted := score * weight
				total += weighted
				details[criterion] = map[string]any{
					"value":           value,
					"target":          target,
					"criterion_score": score,
					"weight":          weight,
					"weighted_score":  weighted,
				}
			}
		}
		scores = append(scores, map[string]any{
			"option":        option,
			"index":         i,
			"total_score":   total,
			"score_details": details,
		})
	}

	best := scores[0]
	for _, candidate := range scores[1:] {
		if candidate["total_score"].(float64) > best["total_score"].(float64) {
			best = candidate
		}
	}
	return map[string]any{
		"selected_option": best["option"],
		"decision_method": "weighted",
		"total_score":     best["total_score"],
		"score_details":   best["score_details"],
		"all_scores":      scores,
		"timestamp":       time.Now().UTC(),
	}
}

// criterionScore rates how well a value matches a target: 1 for an exact
// match, proportionally less for numeric values by relative distance,
// 0 otherwise.
func criterionScore(value, target any) float64 {
	if reflect.DeepEqual(value, target) {
		return 1.0
	}
	v, vok := toFloat64(value)
	w, wok := toFloat64(target)
	if vok && wok {
		scale := math.Max(math.Abs(w), 1)
		return math.Max(0, 1-math.Abs(v-w)/scale)
	}
	return 0.0
}

func randomDecision(options []any) map[string]any {
	return map[string]any{
		"selected_option": options[random.Intn(len(options))],
		"decision_method": "random",
		"reasons":         []string{"random selection"},
		"timestamp":       time.Now().UTC(),
	}
}

func ruleBasedDecision(options []any, rules []any) map[string]any {
	applied := 0
	for _, raw := range rules {
		rule, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		applied++
		ruleType, _ := rule["type"].(string)
		if ruleType == "" {
			ruleType = "filter"
		}
		switch ruleType {
		case "filter":
			ruleCriteria, _ := rule["criteria"].(map[string]any)
			var kept []any
			for _, option := range options {
				if fields, ok := option.(map[string]any); ok && meetsCriteria(fields, ruleCriteria) {
					kept = append(kept, option)
				}
			}
			// A filter that eliminates everything is ignored so a
			// selection can still be made.
			if len(kept) > 0 {
				options = kept
			}
		case "sort":
			key, _ := rule["key"].(string)
			reverse, _ := rule["reverse"].(bool)
			if key != "" {
				sort.SliceStable(options, func(i, j int) bool {
					a, b := ruleSortValue(options[i], key), ruleSortValue(options[j], key)
					if reverse {
						return compareValues(b, a)
					}
					return compareValues(a, b)
				})
			}
		}
	}

	var selected any
	if len(options) > 0 {
		selected = options[0]
	}
	return map[string]any{
		"selected_option":     selected,
		"decision_method":     "rule_based",
		"rules_applied":       applied,
		"final_options_count": len(options),
		"timestamp":           time.Now().UTC(),
	}
}

func meetsCriteria(fields, criteria map[string]any) bool {
	for key, want := range criteria {
		if !reflect.DeepEqual(fields[key], want) {
			return false
		}
	}
	return true
}

func ruleSortValue(option any, key string) any {
	if fields, ok := option.(map[string]any); ok {
		if value, ok := fields[key]; ok {
			return value
		}
	}
	return 0
}
