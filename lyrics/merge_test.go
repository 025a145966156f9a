package lyrics

import (
	"testing"
)

func TestMergeTranslationWithinEpsilon(t *testing.T) {
	tests := []struct {
		name        string
		translation []RawLine
		expected    string
	}{
		{"inside window", []RawLine{{Time: 0.2, Text: "Hello"}}, "Hello"},
		{"exactly at epsilon", []RawLine{{Time: 0.5, Text: "Hello"}}, "Hello"},
		{"outside window", []RawLine{{Time: 2.0, Text: "Hello"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge([]RawLine{{Time: 0, Text: "你好"}}, tt.translation, nil, 0.5)
			if len(got) != 1 {
				t.Fatalf("Expected 1 line, got %d", len(got))
			}
			if got[0].Original != "你好" {
				t.Errorf("Expected original 你好, got %q", got[0].Original)
			}
			if got[0].Translation != tt.expected {
				t.Errorf("Expected translation %q, got %q", tt.expected, got[0].Translation)
			}
		})
	}
}

func TestMergeMultipleTracks(t *testing.T) {
	original := []RawLine{
		{Time: 1, Text: "one"},
		{Time: 5, Text: "two"},
		{Time: 9, Text: "three"},
	}
	translation := []RawLine{
		{Time: 0.9, Text: "uno"},
		{Time: 9.3, Text: "tres"},
	}
	transliteration := []RawLine{
		{Time: 1.1, Text: "wan"},
		{Time: 5.0, Text: "tu"},
		{Time: 9.0, Text: "sri"},
	}

	got := Merge(original, translation, transliteration, DefaultEpsilon)
	if len(got) != 3 {
		t.Fatalf("Expected one line per original, got %d", len(got))
	}

	expected := []Line{
		{Time: 1, Original: "one", Translation: "uno", Transliteration: "wan"},
		{Time: 5, Original: "two", Translation: "", Transliteration: "tu"},
		{Time: 9, Original: "three", Translation: "tres", Transliteration: "sri"},
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Line %d: expected %+v, got %+v", i, expected[i], got[i])
		}
	}
}

func TestMergeDefaultsEpsilon(t *testing.T) {
	got := Merge([]RawLine{{Time: 3, Text: "a"}}, []RawLine{{Time: 3.4, Text: "b"}}, nil, 0)
	if got[0].Translation != "b" {
		t.Errorf("Expected default epsilon to match, got %q", got[0].Translation)
	}
}

func TestMergeEmptyOriginal(t *testing.T) {
	got := Merge(nil, []RawLine{{Time: 1, Text: "orphan"}}, nil, DefaultEpsilon)
	if len(got) != 0 {
		t.Errorf("Expected no lines without an original track, got %d", len(got))
	}
}

func TestMergeSplitsBilingualWithoutTranslation(t *testing.T) {
	got := Merge([]RawLine{{Time: 0, Text: "Hello 你好"}}, nil, nil, DefaultEpsilon)
	if got[0].Original != "Hello" || got[0].Translation != "你好" {
		t.Errorf("Expected Hello / 你好, got %q / %q", got[0].Original, got[0].Translation)
	}

	// An explicit translation track disables splitting
	got = Merge([]RawLine{{Time: 0, Text: "Hello 你好"}}, []RawLine{{Time: 0, Text: "Hi"}}, nil, DefaultEpsilon)
	if got[0].Original != "Hello 你好" || got[0].Translation != "Hi" {
		t.Errorf("Expected unsplit original with track translation, got %+v", got[0])
	}
}

func TestSplitBilingual(t *testing.T) {
	tests := []struct {
		input       string
		original    string
		translation string
	}{
		{"Hello 你好", "Hello", "你好"},
		{"I love you 我爱你", "I love you", "我爱你"},
		{"你好 Hello", "你好 Hello", ""},
		{"Only latin", "Only latin", ""},
		{"... 你好", "... 你好", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			o, tr := SplitBilingual(tt.input)
			if o != tt.original || tr != tt.translation {
				t.Errorf("Expected (%q, %q), got (%q, %q)", tt.original, tt.translation, o, tr)
			}
		})
	}
}
