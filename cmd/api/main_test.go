package main

import (
	"reflect"
	"testing"
)

func TestSplitOrigins(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "https://app.wellhaven.io", []string{"https://app.wellhaven.io"}},
		{"multiple with spaces", "https://app.wellhaven.io, https://admin.wellhaven.io", []string{"https://app.wellhaven.io", "https://admin.wellhaven.io"}},
		{"trailing comma", "https://app.wellhaven.io,", []string{"https://app.wellhaven.io"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitOrigins(tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
