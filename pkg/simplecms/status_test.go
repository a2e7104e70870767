package simplecms_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-cms/pkg/simplecms"
)

func TestParseItemStatus(t *testing.T) {
	status, err := simplecms.ParseItemStatus(" Published ")
	require.NoError(t, err)
	assert.Equal(t, simplecms.ItemStatusPublished, status)

	_, err = simplecms.ParseItemStatus("deleted")
	assert.ErrorIs(t, err, simplecms.ErrValidation)
}

func TestParseSortField(t *testing.T) {
	tests := []struct {
		in      string
		want    simplecms.SortField
		wantErr bool
	}{
		{"", simplecms.SortByCreatedAt, false},
		{"slug", simplecms.SortBySlug, false},
		{"UPDATED_AT", simplecms.SortByUpdatedAt, false},
		{"publishedAt", simplecms.SortByPublishedAt, false},
		{"version", simplecms.SortByVersion, false},
		{"title", "", true},
		{"id; DROP TABLE content_items", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := simplecms.ParseSortField(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, simplecms.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSortOrder(t *testing.T) {
	order, err := simplecms.ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, simplecms.SortDesc, order)

	order, err = simplecms.ParseSortOrder("ASC")
	require.NoError(t, err)
	assert.Equal(t, simplecms.SortAsc, order)

	_, err = simplecms.ParseSortOrder("sideways")
	assert.ErrorIs(t, err, simplecms.ErrValidation)
}
