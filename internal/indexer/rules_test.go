package indexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsgovern/lanegate/internal/indexer"
)

func TestIsFingerprintWorthy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path   string
		worthy bool
	}{
		{"package.json", true},
		{"svc/package.json", true},
		{"go.sum", true},
		{"Dockerfile", true},
		{"deploy/Dockerfile", true},
		{"helm/values.yaml", true},
		{"k8s/deployment.yaml", true},
		{".github/workflows/ci.yml", true},
		{".github/workflows/release.yaml", true},
		{"migrations/0001_init.sql", true},
		{"db/migrate/20260101_users.rb", true},
		{"api/openapi.yaml", true},
		{"docs/swagger.json", true},
		{"proto/events.proto", true},
		{"schema/schema.graphql", true},
		{"src/index.ts", false},
		{"README.md", false},
		{"internal/server.go", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.worthy, indexer.IsFingerprintWorthy(tc.path), tc.path)
	}
}

func TestIsEntrypoint(t *testing.T) {
	t.Parallel()

	assert.True(t, indexer.IsEntrypoint("main.go"))
	assert.True(t, indexer.IsEntrypoint("cmd/server/main.go"))
	assert.True(t, indexer.IsEntrypoint("src/index.ts"))
	assert.True(t, indexer.IsEntrypoint("app.py"))
	assert.True(t, indexer.IsEntrypoint("src/main.rs"))
	assert.False(t, indexer.IsEntrypoint("pkg/main_helper.go"))
	assert.False(t, indexer.IsEntrypoint("src/utils/index.ts.bak"))
}

func TestFingerprintCategory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "manifest", indexer.FingerprintCategory("package.json"))
	assert.Equal(t, "lockfile", indexer.FingerprintCategory("yarn.lock"))
	assert.Equal(t, "contract", indexer.FingerprintCategory("api/openapi.yaml"))
	assert.Equal(t, "infra", indexer.FingerprintCategory("helm/values.yaml"))
	assert.Equal(t, "migration", indexer.FingerprintCategory("migrations/0001.sql"))
	assert.Equal(t, "", indexer.FingerprintCategory("src/server.go"))
}

func TestRouteAndEventDetection(t *testing.T) {
	t.Parallel()

	assert.True(t, indexer.IsRouteControllerFile("src/routes/users.ts"))
	assert.True(t, indexer.IsRouteControllerFile("app/controllers/orders_controller.rb"))
	assert.True(t, indexer.IsEventTopicFile("src/events/order_created.ts"))
	assert.True(t, indexer.IsEventTopicFile("internal/consumers/billing.go"))
	assert.False(t, indexer.IsRouteControllerFile("src/models/user.ts"))
}
