package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Category
	}{
		{"empty selects all", "", CleanupOrder()},
		{"follows cleanup order", "hosts, groups", []Category{NetworkGroups, Hosts}},
		{"singular and duplicates", "host,Hosts,range", []Category{Ranges, Hosts}},
		{"trailing comma", "networks,", []Category{Networks}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCategories(tt.input, CleanupOrder())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseCategories("hosts,fqdns", CleanupOrder())
	assert.ErrorContains(t, err, "fqdns")
}

func TestCategoryLabels(t *testing.T) {
	assert.Equal(t, "group", NetworkGroups.Label())
	assert.Equal(t, TypeRange, Ranges.ObjectType())
	assert.True(t, NetworkGroups.IsGroup())
	assert.False(t, Hosts.IsGroup())
	assert.Equal(t, []Category{Hosts, Ranges, Networks, NetworkGroups}, RestoreOrder())
}
