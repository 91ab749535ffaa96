package distsrv

import (
	"reflect"
	"testing"

	"github.com/islet-oci/imagereg/internal/ociref"
)

func TestSortTagsCaseFold(t *testing.T) {
	tags := []ociref.Tag{"Zed", "alpha", "Beta", "gamma"}
	got := sortTagsCaseFold(tags)
	want := []string{"alpha", "Beta", "gamma", "Zed"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sorted: got %v want %v", got, want)
	}
}

func TestPaginateCutThenTruncate(t *testing.T) {
	sorted := []string{"a", "b", "c", "d", "e"}

	cases := []struct {
		name string
		last string
		n    string
		want []string
	}{
		{"no params returns all", "", "", []string{"a", "b", "c", "d", "e"}},
		{"last cuts exclusive", "b", "", []string{"c", "d", "e"}},
		{"last then n", "b", "2", []string{"c", "d"}},
		{"n alone truncates", "", "3", []string{"a", "b", "c"}},
		{"last at end yields empty", "e", "", []string{}},
		{"last not found yields empty", "zzz", "", []string{}},
		{"n larger than rest", "d", "10", []string{"e"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := paginate(sorted, tc.last, tc.n)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("paginate(last=%q, n=%q): got %v want %v", tc.last, tc.n, got, tc.want)
			}
		})
	}
}
