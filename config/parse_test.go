package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFile(t *testing.T) {
	tmpDir := t.TempDir()

	yamlContent := `
LogLevel: debug
DataDir: ./data
`
	yamlFile := filepath.Join(tmpDir, "test.yaml")
	err := os.WriteFile(yamlFile, []byte(yamlContent), 0644)
	assert.NoError(t, err)

	jsonContent := `{
		"LogLevel": "debug",
		"DataDir": "./data"
	}`
	jsonFile := filepath.Join(tmpDir, "test.json")
	err = os.WriteFile(jsonFile, []byte(jsonContent), 0644)
	assert.NoError(t, err)

	invalidFile := filepath.Join(tmpDir, "test.txt")
	err = os.WriteFile(invalidFile, []byte("test"), 0644)
	assert.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{
			name:    "parse yaml file",
			path:    yamlFile,
			wantErr: false,
		},
		{
			name:    "parse json file",
			path:    jsonFile,
			wantErr: false,
		},
		{
			name:    "invalid file extension",
			path:    invalidFile,
			wantErr: true,
		},
		{
			name:    "non-existent file",
			path:    "nonexistent.yaml",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := ParseFile(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, config)
			assert.Equal(t, "debug", config.LogLevel)
			assert.Equal(t, "./data", config.DataDir)
		})
	}
}

func TestParseYAML(t *testing.T) {
	content := `
LogLevel: info
MaxConcurrentWorkflows: 4
DefaultStepTimeout: 30
DefaultMaxRetries: 2
Agents:
  - Name: researcher
    Capabilities:
      - data_*
      - reporting
  - Name: writer
    Config:
      style: concise
Workflows:
  - Name: Pipeline
    Description: Fetch and summarize
    Steps:
      - ID: fetch
        Name: Fetch
        Type: agent_task
        AgentName: researcher
        Config:
          task: fetch
      - ID: summarize
        Name: Summarize
        Type: agent_task
        AgentName: writer
        Dependencies:
          - fetch
        Timeout: 5.5
        MaxRetries: 0
`
	config, err := ParseYAML([]byte(content))
	assert.NoError(t, err)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 4, config.MaxConcurrentWorkflows)
	assert.Equal(t, 30.0, config.DefaultStepTimeout)
	if assert.NotNil(t, config.DefaultMaxRetries) {
		assert.Equal(t, 2, *config.DefaultMaxRetries)
	}

	assert.Len(t, config.Agents, 2)
	assert.Equal(t, "researcher", config.Agents[0].Name)
	assert.Equal(t, []string{"data_*", "reporting"}, config.Agents[0].Capabilities)
	assert.Equal(t, "concise", config.Agents[1].Config["style"])

	assert.Len(t, config.Workflows, 1)
	wf := config.Workflows[0]
	assert.Equal(t, "Pipeline", wf.Name)
	assert.Len(t, wf.Steps, 2)
	assert.Equal(t, []string{"fetch"}, wf.Steps[1].Dependencies)
	assert.Equal(t, 5.5, wf.Steps[1].Timeout)
	if assert.NotNil(t, wf.Steps[1].MaxRetries) {
		assert.Equal(t, 0, *wf.Steps[1].MaxRetries)
	}
}

func TestParseYAMLRejectsUnknownFields(t *testing.T) {
	_, err := ParseYAML([]byte("Bogus: value"))
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	content := `{
		"Workflows": [
			{
				"Name": "Solo",
				"Steps": [
					{"ID": "only", "Name": "Only", "Type": "delay", "Config": {"seconds": 0.1}}
				]
			}
		]
	}`
	config, err := ParseJSON([]byte(content))
	assert.NoError(t, err)
	assert.Len(t, config.Workflows, 1)
	assert.Equal(t, "delay", config.Workflows[0].Steps[0].Type)

	_, err = ParseJSON([]byte("{not json"))
	assert.Error(t, err)
}

func TestStepDefTimeoutDuration(t *testing.T) {
	assert.Equal(t, "1.5s", StepDef{Timeout: 1.5}.TimeoutDuration().String())
	assert.Equal(t, "0s", StepDef{}.TimeoutDuration().String())
}
