package exam

import "testing"

func TestSplitPaper(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		wantBody       string
		wantCommentary string
	}{
		{
			name:     "no delimiter",
			text:     "  SECTION A\n1. Define force.  ",
			wantBody: "SECTION A\n1. Define force.",
		},
		{
			name:           "with delimiter",
			text:           "SECTION A\n1. Define force.\n" + PaperDelimiter + "\nAll the best!",
			wantBody:       "SECTION A\n1. Define force.",
			wantCommentary: "All the best!",
		},
		{
			name:           "only first delimiter splits",
			text:           "body" + PaperDelimiter + "one" + PaperDelimiter + "two",
			wantBody:       "body",
			wantCommentary: "one" + PaperDelimiter + "two",
		},
		{name: "empty", text: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, commentary := SplitPaper(tt.text)
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
			if commentary != tt.wantCommentary {
				t.Errorf("commentary = %q, want %q", commentary, tt.wantCommentary)
			}
		})
	}
}

func TestIsPaper(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"marker", PaperMarker + "\nAnything", true},
		{"sections and marks", "Class 10 Science\nMaximum Marks: 80\n\nSECTION A\n1. ...", true},
		{"markdown section", "Max. Marks - 40\n## Section B\nQ5", true},
		{"marks only", "You scored well. Maximum Marks: 80", false},
		{"section only", "SECTION A is the easiest part.", false},
		{"plain dialogue", "Shall we begin the exam?", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPaper(tt.text); got != tt.want {
				t.Errorf("IsPaper() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStripPaperMarker(t *testing.T) {
	if got := StripPaperMarker(PaperMarker + "\nSECTION A"); got != "SECTION A" {
		t.Errorf("StripPaperMarker = %q, want %q", got, "SECTION A")
	}
	if got := StripPaperMarker("no marker"); got != "no marker" {
		t.Errorf("StripPaperMarker changed unmarked text: %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs int
		want string
	}{
		{0, "0 min 0 sec"},
		{59, "0 min 59 sec"},
		{61, "1 min 1 sec"},
		{3725, "62 min 5 sec"},
		{-4, "0 min 0 sec"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.secs); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}
