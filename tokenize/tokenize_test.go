package tokenize

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestClean(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Road  Repair ", "road repair"},
		{"Bridge(2024)", "bridge 2024"},
		{"value n/a here", "value here"},
		{"ＦＵＬＬｗｉｄｔｈ", "fullwidth"}, // NFKC folds fullwidth forms
		{"", ""},
	}
	for _, tc := range cases {
		if got := Clean(tc.in); got != tc.want {
			t.Fatalf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFilterContent(t *testing.T) {
	tokens := []Token{
		{Form: "도로", Tag: TagNounGeneral},
		{Form: "은", Tag: "JX"}, // particle, filtered
		{Form: "2024", Tag: TagSerialNumber},
		{Form: "했다", Tag: "VV"}, // verb, filtered
		{Form: "seoul", Tag: TagForeign},
	}
	got := FilterContent(tokens)
	want := []string{"도로", "2024", "seoul"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FilterContent = %v, want %v", got, want)
	}
}

func TestLexiconLongestMatch(t *testing.T) {
	lt := NewLexiconTokenizer(map[string]string{
		"도로":   TagNounGeneral,
		"도로공사": TagNounGeneral,
		"서울":   TagNounProper,
	})
	tokens, err := lt.Tokenize(Clean("서울 도로공사"))
	if err != nil {
		t.Fatal(err)
	}
	want := []Token{
		{Form: "서울", Tag: TagNounProper},
		{Form: "도로공사", Tag: TagNounGeneral}, // longest match beats "도로"
	}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
}

func TestLexiconFallbackClasses(t *testing.T) {
	lt := NewLexiconTokenizer(map[string]string{"도로": TagNounGeneral})
	tokens, err := lt.Tokenize("abc123한글-")
	if err != nil {
		t.Fatal(err)
	}
	want := []Token{
		{Form: "abc", Tag: TagForeign},
		{Form: "123", Tag: TagSerialNumber},
		{Form: "한글", Tag: TagNounGeneral},
		{Form: "-", Tag: TagSymbol},
	}
	if !reflect.DeepEqual(tokens, want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
}

func TestLoadLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.txt")
	data := "# comment\n도로공사\tNNG\n서울\tNNP\nuntagged\n\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	lt, err := LoadLexicon(path)
	if err != nil {
		t.Fatal(err)
	}
	if lt.Size() != 3 {
		t.Fatalf("size = %d, want 3", lt.Size())
	}
	tokens, err := lt.Tokenize("untagged")
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 1 || tokens[0].Tag != TagNounGeneral {
		t.Fatalf("untagged entry = %v", tokens)
	}
}

func TestLoadLexiconEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.txt")
	if err := os.WriteFile(path, []byte("# only a comment\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLexicon(path); err == nil {
		t.Fatal("empty lexicon accepted")
	}
}

func TestContentTokens(t *testing.T) {
	lt := NewLexiconTokenizer(map[string]string{
		"도로": TagNounGeneral,
		"은":  "JX",
	})
	got, err := ContentTokens(lt, "도로은(2024)")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"도로", "2024"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ContentTokens = %v, want %v", got, want)
	}
}
