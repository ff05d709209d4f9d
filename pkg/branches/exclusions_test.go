package branches

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExclusionSetContains(t *testing.T) {
	set := newExclusionSet([]string{"Klant", " order ", ""})

	assert.True(t, set.Contains("klant"))
	assert.True(t, set.Contains("KLANT"))
	assert.True(t, set.Contains(" order"))
	assert.False(t, set.Contains("page"))
	assert.False(t, set.Contains(""))
}

func TestIsSkipCopyTable(t *testing.T) {
	denyList := []string{"wiser_login_attempts"}

	tests := []struct {
		table string
		want  bool
	}{
		{table: "wiser_item", want: false},
		{table: "wiser_itemarchive", want: true},
		{table: "log_requests", want: true},
		{table: "access_log", want: true},
		{table: "wiser_login_attempts", want: true},
		{table: "WISER_LOGIN_ATTEMPTS", want: true},
		{table: "catalog", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			assert.Equal(t, tt.want, isSkipCopyTable(tt.table, denyList))
		})
	}
}
