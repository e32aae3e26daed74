package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/deepnoodle-ai/cascade/config"
	"github.com/deepnoodle-ai/cascade/engine"
	"github.com/deepnoodle-ai/cascade/internal/tablewriter"
	"github.com/deepnoodle-ai/cascade/slogger"
	"github.com/deepnoodle-ai/cascade/workflow"
	"github.com/fatih/color"
)

var (
	successStyle = color.New(color.FgGreen)
	errorStyle   = color.New(color.FgRed)
	infoStyle    = color.New(color.FgCyan)
)

func fatal(msg string, args ...interface{}) {
	fmt.Printf(errorStyle.Sprint(msg)+"\n", args...)
	os.Exit(1)
}

func main() {
	var configPath, workflowName, varsFlag string
	var watch bool
	flag.StringVar(&configPath, "config", "", "Config file, directory, or glob pattern")
	flag.StringVar(&workflowName, "workflow", "", "Workflow name")
	flag.StringVar(&varsFlag, "var", "", "Comma-separated list of variables in format key=value")
	flag.BoolVar(&watch, "watch", false, "Re-run the workflow when config files change")
	flag.Parse()

	if configPath == "" && flag.NArg() > 0 {
		configPath = flag.Arg(0)
	}
	if configPath == "" {
		fatal("Error: config path is required")
	}

	vars := map[string]any{}
	if varsFlag != "" {
		varPairs := strings.Split(varsFlag, ",")
		for _, pair := range varPairs {
			parts := strings.SplitN(pair, "=", 2)
			if len(parts) != 2 {
				fatal("Error: invalid variable format: %s", pair)
			}
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			vars[key] = value
		}
	}

	ctx := context.Background()

	err := run(ctx, configPath, workflowName, vars)
	if err != nil && !watch {
		fatal(err.Error())
	}
	if err != nil {
		fmt.Println(errorStyle.Sprint(err.Error()))
	}
	if !watch {
		return
	}

	// Watch the static part of the path so globs resolve to a real dir.
	watchPath := configPath
	if strings.ContainsAny(watchPath, "*?[{") {
		watchPath, _ = doublestar.SplitPattern(watchPath)
	}
	fmt.Println(infoStyle.Sprintf("Watching %s for config changes", watchPath))

	err = config.Watch(ctx, config.WatchOptions{Paths: []string{watchPath}}, func(path string) {
		fmt.Println(infoStyle.Sprintf("Config changed: %s", path))
		if err := run(ctx, configPath, workflowName, vars); err != nil {
			fmt.Println(errorStyle.Sprint(err.Error()))
		}
	})
	if err != nil {
		fatal(err.Error())
	}
}

func run(ctx context.Context, configPath, workflowName string, vars map[string]any) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := slogger.New(slogger.LevelFromString(cfg.LogLevel))

	var store engine.EventStore
	if cfg.DataDir != "" {
		store = engine.NewFileEventStore(filepath.Join(cfg.DataDir, "events"))
	}

	eng, workflows, err := config.Build(cfg, config.BuildOptions{
		Logger:     logger,
		EventStore: store,
	})
	if err != nil {
		return err
	}

	wf, err := chooseWorkflow(workflows, workflowName)
	if err != nil {
		return err
	}
	wf.Context().UpdateData(vars)

	start := time.Now()
	wctx, execErr := eng.ExecuteWorkflow(ctx, wf)

	printStatusTable(wf, wctx)

	if execErr != nil {
		return fmt.Errorf("workflow %q failed: %w", wf.Name(), execErr)
	}
	fmt.Println(successStyle.Sprintf("Workflow %q completed in %s",
		wf.Name(), time.Since(start).Round(time.Millisecond)))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if strings.ContainsAny(path, "*?[{") {
		cfg, err = config.LoadGlob(path)
	} else {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil, statErr
		}
		if info.IsDir() {
			cfg, err = config.LoadDirectory(path)
		} else {
			cfg, err = config.ParseFile(path)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func chooseWorkflow(workflows map[string]*workflow.Workflow, name string) (*workflow.Workflow, error) {
	if name != "" {
		wf, ok := workflows[name]
		if !ok {
			return nil, fmt.Errorf("unknown workflow: %s", name)
		}
		return wf, nil
	}
	if len(workflows) == 1 {
		for _, wf := range workflows {
			return wf, nil
		}
	}
	return nil, fmt.Errorf("you must specify a workflow name with -workflow")
}

func printStatusTable(wf *workflow.Workflow, wctx *workflow.Context) {
	if wctx == nil {
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Step", "Kind", "Status", "Duration", "Retries"})
	for _, step := range wf.Steps() {
		result, ok := wctx.GetStepResult(step.ID())
		if !ok {
			table.Append([]string{step.Name(), string(step.Kind()), "-", "-", "-"})
			continue
		}
		status := successStyle.Sprint("success")
		if !result.Success {
			status = errorStyle.Sprint("failed")
		}
		table.Append([]string{
			step.Name(),
			string(step.Kind()),
			status,
			result.ExecutionTime.Round(time.Millisecond).String(),
			fmt.Sprintf("%d", result.RetryCount),
		})
	}
	table.Render()
}
