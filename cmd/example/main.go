package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/deepnoodle-ai/cascade"
	"github.com/deepnoodle-ai/cascade/agent"
	"github.com/deepnoodle-ai/cascade/engine"
	"github.com/deepnoodle-ai/cascade/slogger"
	"github.com/deepnoodle-ai/cascade/tasks"
	"github.com/deepnoodle-ai/cascade/workflow"
	"github.com/fatih/color"
)

var (
	headerStyle  = color.New(color.FgCyan, color.Bold)
	successStyle = color.New(color.FgGreen)
	errorStyle   = color.New(color.FgRed)
)

func fatal(msg string, args ...interface{}) {
	fmt.Printf(errorStyle.Sprint(msg)+"\n", args...)
	os.Exit(1)
}

func section(title string) {
	fmt.Println()
	headerStyle.Println(title)
}

func printJSON(label string, value any) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal("failed to marshal %s: %s", label, err)
	}
	fmt.Printf("%s:\n%s\n", label, data)
}

func main() {
	ctx := context.Background()
	logger := slogger.New(slogger.LevelInfo)

	section("Building agents")

	greet := func(ctx context.Context, params map[string]any) (map[string]any, error) {
		name, _ := params["name"].(string)
		if name == "" {
			name = "there"
		}
		style, _ := params["style"].(string)
		greetings := map[string]string{
			"formal":       fmt.Sprintf("Good day, %s. How may I assist you today?", name),
			"casual":       fmt.Sprintf("Hey %s! What's up?", name),
			"enthusiastic": fmt.Sprintf("Hello there, %s! Great to see you!", name),
		}
		greeting, ok := greetings[style]
		if !ok {
			greeting = greetings["formal"]
		}
		return map[string]any{"greeting": greeting, "style_used": style}, nil
	}

	analyst, err := agent.NewBuilder().
		WithName("analyst").
		WithCapability("data_processing").
		WithCapability("analysis").
		WithConfig(map[string]any{"locale": "en"}).
		WithActionHandler("process_data", tasks.Handler(tasks.NewDataProcessingTask(tasks.TaskOptions{}))).
		WithActionHandler("analyze", tasks.Handler(tasks.NewAnalysisTask(tasks.TaskOptions{}))).
		WithActionHandler("greet", greet).
		WithLogger(logger).
		Build()
	if err != nil {
		fatal(err.Error())
	}

	notify := tasks.NewCommunicationTask(tasks.CommunicationTaskOptions{
		Deliver: func(ctx context.Context, payload map[string]any) error {
			fmt.Printf("  delivered: %v\n", payload["message"])
			return nil
		},
		Logger: logger,
	})
	messenger, err := agent.New(agent.Options{
		Name:         "messenger",
		Capabilities: []string{"communication", "reporting"},
		ActionHandlers: map[string]agent.ActionHandler{
			"notify": tasks.Handler(notify),
		},
		Logger: logger,
	})
	if err != nil {
		fatal(err.Error())
	}

	fmt.Printf("Created agents: %s, %s\n", analyst.Name(), messenger.Name())

	greeting, err := analyst.Act(ctx, "greet", map[string]any{
		"name":  "Alice",
		"style": "enthusiastic",
	})
	if err != nil {
		fatal(err.Error())
	}
	printJSON("Greeting", greeting)

	section("Running a task directly")

	decide := tasks.NewDecisionTask(tasks.TaskOptions{Name: "Vendor Choice"})
	decision := tasks.Run(ctx, decide, map[string]any{
		"decision_type": "weighted",
		"options": []any{
			map[string]any{"name": "Option A", "cost": 100, "quality": 8},
			map[string]any{"name": "Option B", "cost": 150, "quality": 9},
			map[string]any{"name": "Option C", "cost": 80, "quality": 6},
		},
		"criteria": map[string]any{"quality": 9, "cost": 100},
		"weights":  map[string]any{"quality": 0.6, "cost": 0.4},
	})
	if !decision.Success {
		fatal(decision.Error)
	}
	printJSON("Decision", decision.Data)

	section("Executing a workflow")

	rows := make([]any, 0, 10)
	for i := 0; i < 10; i++ {
		category := "B"
		if i%2 == 0 {
			category = "A"
		}
		rows = append(rows, map[string]any{"id": i, "value": i * 2, "category": category})
	}

	wf, err := workflow.NewBuilder("Data Processing Pipeline").
		Description("Clean a dataset, analyze it two ways, then report").
		AddAgentTask(workflow.AgentTaskOptions{
			ID:        "ingest",
			Name:      "Ingest Data",
			AgentName: "analyst",
			Config: map[string]any{
				"action": "process_data",
				"parameters": map[string]any{
					"data":            rows,
					"operations":      []any{"filter", "sort"},
					"filter_criteria": map[string]any{"category": "A"},
					"sort_key":        "value",
				},
				"store_result_as": "cleaned",
			},
		}).
		AddAgentTask(workflow.AgentTaskOptions{
			ID:           "stats",
			Name:         "Statistical Analysis",
			AgentName:    "analyst",
			Dependencies: []string{"ingest"},
			Config: map[string]any{
				"action": "analyze",
				"parameters": map[string]any{
					"data":          []any{1, 5, 3, 9, 2, 8, 4, 7, 6, 10},
					"analysis_type": "statistical",
				},
				"store_result_as": "stats",
			},
		}).
		AddAgentTask(workflow.AgentTaskOptions{
			ID:           "words",
			Name:         "Text Analysis",
			AgentName:    "analyst",
			Dependencies: []string{"ingest"},
			Config: map[string]any{
				"action": "analyze",
				"parameters": map[string]any{
					"data":          "the quick brown fox jumps over the lazy dog",
					"analysis_type": "text",
				},
				"store_result_as": "word_stats",
			},
		}).
		AddDelay(workflow.DelayOptions{
			ID:           "settle",
			Name:         "Settle",
			Seconds:      0.2,
			Dependencies: []string{"stats", "words"},
		}).
		AddAgentTask(workflow.AgentTaskOptions{
			ID:           "report",
			Name:         "Send Report",
			AgentName:    "messenger",
			Dependencies: []string{"settle"},
			Config: map[string]any{
				"action": "notify",
				"parameters": map[string]any{
					"message":            "Data processing pipeline completed",
					"recipient":          "system_admin",
					"communication_type": "notification",
				},
				"store_result_as": "report",
			},
		}).
		Build()
	if err != nil {
		fatal(err.Error())
	}

	eng, err := engine.New(engine.Options{
		Agents: []cascade.Agent{analyst, messenger},
		Logger: logger,
	})
	if err != nil {
		fatal(err.Error())
	}

	start := time.Now()
	wctx, err := eng.ExecuteWorkflow(ctx, wf)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Println(successStyle.Sprintf("Workflow %q completed in %s",
		wf.Name(), time.Since(start).Round(time.Millisecond)))

	section("Step results")
	for _, step := range wf.Steps() {
		result, ok := wctx.GetStepResult(step.ID())
		if !ok {
			continue
		}
		status := successStyle.Sprint("success")
		if !result.Success {
			status = errorStyle.Sprint("failed")
		}
		fmt.Printf("  %-8s %s in %s\n", step.ID(), status,
			result.ExecutionTime.Round(time.Millisecond))
	}

	section("Context data")
	data := wctx.Data()
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fmt.Printf("Keys accumulated by the pipeline: %v\n", keys)
}
