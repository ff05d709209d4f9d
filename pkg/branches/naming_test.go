package branches

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeBranchName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercased", in: "Zomercampagne", want: "zomercampagne"},
		{name: "spaces become underscores", in: "summer sale 2026", want: "summer_sale_2026"},
		{name: "dashes and dots become underscores", in: "release-1.2", want: "release_1_2"},
		{name: "unsafe characters dropped", in: `ook/rare\"tekens'`, want: "ookraretekens"},
		{name: "surrounding underscores trimmed", in: "  _test_  ", want: "test"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeBranchName(tt.in))
		})
	}
}

func TestDeriveDatabaseName(t *testing.T) {
	assert.Equal(t, "wiser_main_dev", deriveDatabaseName("wiser_main", "Dev"))

	// names never exceed the MySQL identifier limit
	got := deriveDatabaseName("wiser_main", strings.Repeat("x", 100))
	assert.LessOrEqual(t, len(got), maxDatabaseNameLength)
	assert.Equal(t, "wiser_main_"+strings.Repeat("x", 53), got)
}

func TestDeriveSubdomain(t *testing.T) {
	assert.Equal(t, "acme_dev", deriveSubdomain("Acme", "Dev"))
}
