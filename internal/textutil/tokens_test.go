package textutil

import (
	"reflect"
	"testing"
)

func TestWords(t *testing.T) {
	got := Words("PureDrop's filter removes 99% of Lead!")
	want := []string{"puredrop's", "filter", "removes", "99", "of", "lead"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Words() = %v, want %v", got, want)
	}
}

func TestContentWords(t *testing.T) {
	got := ContentWords("The filter is in the kitchen")
	want := []string{"filter", "kitchen"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ContentWords() = %v, want %v", got, want)
	}
}

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"two sentences", "First one. Second one!", []string{"First one.", "Second one!"}},
		{"no terminator", "  just words  ", []string{"just words"}},
		{"empty", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sentences(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sentences(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
