package feed

import (
	"reflect"
	"testing"
)

type mediaRow struct {
	ID    int64
	Title string
	URL   string
}

var mediaFolder = RowFolder[mediaRow]{
	ID: func(r mediaRow) int64 { return r.ID },
	New: func(r mediaRow) ContentItem {
		it := ContentItem{ID: r.ID, Title: r.Title}
		if r.URL != "" {
			it.MediaURLs = []string{r.URL}
		}
		return it
	},
	Merge: func(it *ContentItem, r mediaRow) {
		if r.URL != "" {
			it.MediaURLs = append(it.MediaURLs, r.URL)
		}
	},
}

func TestRowFolder(t *testing.T) {
	tests := []struct {
		name string
		rows []mediaRow
		want []ContentItem
	}{
		{
			name: "empty",
			rows: nil,
			want: []ContentItem{},
		},
		{
			name: "one row per item",
			rows: []mediaRow{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}},
			want: []ContentItem{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}},
		},
		{
			name: "multi-attachment rows fold into one item",
			rows: []mediaRow{
				{ID: 1, Title: "a", URL: "u1"},
				{ID: 1, Title: "a", URL: "u2"},
				{ID: 2, Title: "b", URL: "u3"},
			},
			want: []ContentItem{
				{ID: 1, Title: "a", MediaURLs: []string{"u1", "u2"}},
				{ID: 2, Title: "b", MediaURLs: []string{"u3"}},
			},
		},
		{
			name: "first-seen order survives interleaving",
			rows: []mediaRow{
				{ID: 2, Title: "b", URL: "u1"},
				{ID: 1, Title: "a", URL: "u2"},
				{ID: 2, Title: "b", URL: "u3"},
			},
			want: []ContentItem{
				{ID: 2, Title: "b", MediaURLs: []string{"u1", "u3"}},
				{ID: 1, Title: "a", MediaURLs: []string{"u2"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mediaFolder.Fold(tt.rows)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
