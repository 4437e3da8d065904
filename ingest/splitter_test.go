package ingest

import "testing"

func TestRegexSentenceSplitter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "three simple sentences",
			text: "This is one. This is two. This is three.",
			want: 3,
		},
		{
			name: "abbreviation does not split",
			text: "Dr. Smith arrived. He was late.",
			want: 2,
		},
		{
			name: "question and exclamation",
			text: "Is this real? Yes it is! Good.",
			want: 3,
		},
		{
			name: "no terminal punctuation",
			text: "just a fragment with no ending",
			want: 1,
		},
		{
			name: "empty string",
			text: "",
			want: 0,
		},
	}

	var splitter RegexSentenceSplitter
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitter.Split(tt.text)
			if len(got) != tt.want {
				t.Errorf("Split(%q) = %v (len %d), want len %d", tt.text, got, len(got), tt.want)
			}
		})
	}
}
