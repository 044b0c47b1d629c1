package language

import "testing"

func TestDetectPortuguese(t *testing.T) {
	p := Detect("como você está?")
	if p.Code != Portuguese {
		t.Fatalf("got %s, want pt (scores=%v)", p.Code, p.Scores)
	}
	if p.Confidence <= 0 {
		t.Fatalf("expected positive confidence, got %v", p.Confidence)
	}
}

func TestDetectEnglish(t *testing.T) {
	p := Detect("hello, how are you today?")
	if p.Code != English {
		t.Fatalf("got %s, want en (scores=%v)", p.Code, p.Scores)
	}
}

func TestDetectGermanUmlautOverride(t *testing.T) {
	p := Detect("für")
	if p.Code != German {
		t.Fatalf("got %s, want de override (scores=%v)", p.Code, p.Scores)
	}
}

func TestDetectSpanishPunctuationOverride(t *testing.T) {
	p := Detect("¿qué tal?")
	if p.Code != Spanish {
		t.Fatalf("got %s, want es override (scores=%v)", p.Code, p.Scores)
	}
}

func TestDetectPortugueseDiacriticOverride(t *testing.T) {
	p := Detect("condição")
	if p.Code != Portuguese {
		t.Fatalf("got %s, want pt override (scores=%v)", p.Code, p.Scores)
	}
}

func TestDetectEmptyIsUnknown(t *testing.T) {
	p := Detect("")
	if p.Code != Unknown || p.Confidence != 0 {
		t.Fatalf("expected Unknown/0, got %s/%v", p.Code, p.Confidence)
	}
}

func TestIsGreeting(t *testing.T) {
	if !IsGreeting("Olá, tudo bem?", Portuguese) {
		t.Fatal("expected greeting match")
	}
	if IsGreeting("quero saber o total", Portuguese) {
		t.Fatal("unexpected greeting match")
	}
}

func TestSortedCodesDeterministic(t *testing.T) {
	p := Detect("hello there")
	first := SortedCodes(p.Scores)
	second := SortedCodes(p.Scores)
	if len(first) != len(second) {
		t.Fatal("non-deterministic length")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("non-deterministic order at %d", i)
		}
	}
}
