package similarity

import "testing"

func TestNormalizeStripsTrailingWhitespaceAndBlankEdges(t *testing.T) {
	in := "\n\n  line one  \nline two\t\n\n\n"
	want := "  line one\nline two"
	if got := Normalize(in); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestTokenizeMultiCharOpsBeforeSingleChar(t *testing.T) {
	got := Tokenize("a==b!=c<=d>=e->f++g--h&&i||j")
	want := []string{"a", "==", "b", "!=", "c", "<=", "d", ">=", "e", "->", "f", "++", "g", "--", "h", "&&", "i", "||", "j"}
	if !equalSlices(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestTokenizeIdentifiersAndIntegers(t *testing.T) {
	got := Tokenize("x1 = 42 + _y2")
	want := []string{"x1", "=", "42", "+", "_y2"}
	if !equalSlices(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestJaccardBothEmptyIsHundred(t *testing.T) {
	if got := JaccardPercent(nil, nil); got != 100.0 {
		t.Fatalf("expected 100, got %v", got)
	}
}

func TestJaccardOneEmptyIsZero(t *testing.T) {
	if got := JaccardPercent(nil, []string{"a"}); got != 0.0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := JaccardPercent([]string{"a"}, nil); got != 0.0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestJaccardIdenticalTokensIsHundred(t *testing.T) {
	toks := Tokenize("print(1)")
	if got := JaccardPercent(toks, toks); got != 100.0 {
		t.Fatalf("expected 100, got %v", got)
	}
}

// S3: disjoint token sets score strictly below 40.
func TestJaccardDisjointFilesScoreBelow40(t *testing.T) {
	a := Tokenize(Normalize("print(1)"))
	b := Tokenize(Normalize("class X: pass"))
	score := JaccardPercent(a, b)
	if score < 0 || score >= 40 {
		t.Fatalf("expected 0 <= score < 40 for disjoint files, got %v", score)
	}
}

// S2: renaming identifiers should land strictly between 0 and 100.
func TestJaccardRenamedIdentifiersStrictlyBetween(t *testing.T) {
	fileA := "def f(n):\n a=0\n b=1\n for _ in range(n):\n  a,b=b,a+b\n return a"
	fileB := "def fib(n):\n x=0\n first=1\n for i in range(n):\n  x,first=first,x+first\n return x"
	a := Tokenize(Normalize(fileA))
	b := Tokenize(Normalize(fileB))
	score := JaccardPercent(a, b)
	if score <= 0 || score >= 100 {
		t.Fatalf("expected 0 < score < 100, got %v", score)
	}
	if score <= 40 {
		t.Fatalf("expected renamed-identifier score > 40, got %v", score)
	}
}

func TestWinnowSharedFingerprintsOnIdenticalInput(t *testing.T) {
	toks := Tokenize(Normalize("a b c d e f g h i j k l m n o p q r s t u v w x y z"))
	fpA := Winnow(toks, 5, 3)
	fpB := Winnow(toks, 5, 3)
	if len(fpA) == 0 {
		t.Fatalf("expected at least one fingerprint for 26 tokens")
	}
	shared := SharedFingerprints(fpA, fpB)
	if len(shared) != len(fpA) {
		t.Fatalf("expected all fingerprints shared for identical input, got %d of %d", len(shared), len(fpA))
	}
}

func TestWinnowEmptyOnShortInput(t *testing.T) {
	if got := Winnow([]string{"a", "b"}, 5, 3); got != nil {
		t.Fatalf("expected nil fingerprints for input shorter than k, got %v", got)
	}
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
