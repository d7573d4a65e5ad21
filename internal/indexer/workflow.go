package indexer

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opsgovern/lanegate/internal/model"
)

// workflowDoc is the subset of a GitHub Actions workflow we read.
type workflowDoc struct {
	Jobs map[string]struct {
		Steps []struct {
			Name string `yaml:"name"`
			Run  string `yaml:"run"`
		} `yaml:"steps"`
	} `yaml:"jobs"`
}

// Command classification keywords, checked in order. A command matching no
// group is ignored.
var commandKinds = []struct {
	kind     string
	keywords []string
}{
	{"install", []string{"npm ci", "npm install", "yarn install", "pnpm install", "pip install", "poetry install", "go mod download", "bundle install", "composer install"}},
	{"lint", []string{"lint", "vet", "fmt --check", "prettier --check", "ruff", "flake8", "eslint"}},
	{"test", []string{"test", "pytest", "jest", "rspec", "phpunit"}},
	{"build", []string{"build", "compile", "tsc", "webpack", "docker build"}},
}

// ParseWorkflowCommands extracts run commands from one CI workflow document
// and merges them into commands, recording the workflow path as an evidence
// file. Unparseable documents are skipped; build-command discovery is best
// effort and never fails the index.
func ParseWorkflowCommands(commands *model.BuildCommands, workflowPath string, content []byte) {
	var doc workflowDoc

	err := yaml.Unmarshal(content, &doc)
	if err != nil || len(doc.Jobs) == 0 {
		return
	}

	jobNames := make([]string, 0, len(doc.Jobs))
	for name := range doc.Jobs {
		jobNames = append(jobNames, name)
	}

	sort.Strings(jobNames)

	found := false

	for _, jobName := range jobNames {
		for _, step := range doc.Jobs[jobName].Steps {
			run := strings.TrimSpace(step.Run)
			if run == "" {
				continue
			}

			kind := classifyCommand(run)
			if kind == "" {
				continue
			}

			found = true

			appendCommand(commands, kind, run)
		}
	}

	if found {
		commands.EvidenceFiles = appendUnique(commands.EvidenceFiles, workflowPath)
	}
}

func classifyCommand(run string) string {
	lowered := strings.ToLower(run)

	for _, group := range commandKinds {
		for _, keyword := range group.keywords {
			if strings.Contains(lowered, keyword) {
				return group.kind
			}
		}
	}

	return ""
}

func appendCommand(commands *model.BuildCommands, kind, run string) {
	switch kind {
	case "install":
		commands.Install = appendUnique(commands.Install, run)
	case "lint":
		commands.Lint = appendUnique(commands.Lint, run)
	case "build":
		commands.Build = appendUnique(commands.Build, run)
	case "test":
		commands.Test = appendUnique(commands.Test, run)
	}
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}

	return append(list, value)
}
