package database

import "testing"

func TestValidCollectionName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"abc", true},
		{"a", false},
		{"ab", false},
		{"..abc", false},
		{"192.168.1.1", false},
		{"abc!", false},
		{"-abc", false},
		{"my-collection", true},
		{"my_collection_1", true},
		{"a..b", false},
		{"docs", true},
	}

	for _, tc := range cases {
		if got := ValidCollectionName(tc.name); got != tc.want {
			t.Errorf("ValidCollectionName(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
