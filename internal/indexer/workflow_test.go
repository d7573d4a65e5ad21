package indexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsgovern/lanegate/internal/indexer"
	"github.com/opsgovern/lanegate/internal/model"
)

const sampleWorkflow = `
name: ci
on: [push]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: install deps
        run: npm ci
      - name: lint
        run: npm run lint
      - name: build
        run: npm run build
      - name: test
        run: npm test
`

func TestParseWorkflowCommands(t *testing.T) {
	t.Parallel()

	commands := model.BuildCommands{}

	indexer.ParseWorkflowCommands(&commands, ".github/workflows/ci.yml", []byte(sampleWorkflow))

	assert.Equal(t, []string{"npm ci"}, commands.Install)
	assert.Equal(t, []string{"npm run lint"}, commands.Lint)
	assert.Equal(t, []string{"npm run build"}, commands.Build)
	assert.Equal(t, []string{"npm test"}, commands.Test)
	assert.Equal(t, []string{".github/workflows/ci.yml"}, commands.EvidenceFiles)
}

func TestParseWorkflowCommands_UnparseableIsSkipped(t *testing.T) {
	t.Parallel()

	commands := model.BuildCommands{}

	indexer.ParseWorkflowCommands(&commands, ".github/workflows/bad.yml", []byte("{{ not yaml"))

	assert.Empty(t, commands.Install)
	assert.Empty(t, commands.EvidenceFiles)
}

func TestParseWorkflowCommands_Deduplicates(t *testing.T) {
	t.Parallel()

	commands := model.BuildCommands{}

	indexer.ParseWorkflowCommands(&commands, ".github/workflows/a.yml", []byte(sampleWorkflow))
	indexer.ParseWorkflowCommands(&commands, ".github/workflows/b.yml", []byte(sampleWorkflow))

	assert.Equal(t, []string{"npm ci"}, commands.Install)
	assert.Len(t, commands.EvidenceFiles, 2)
}
