package coderoute

import (
	"context"
	"testing"
)

func TestLooksLikeCodePython(t *testing.T) {
	if !LooksLikeCode("def soma(x, y):\n    return x + y\n", false) {
		t.Fatal("expected python snippet to look like code")
	}
}

func TestLooksLikeCodeRejectsProse(t *testing.T) {
	if LooksLikeCode("como você está?", false) {
		t.Fatal("did not expect prose to look like code")
	}
}

func TestLooksLikeCodeExtraLanguageGated(t *testing.T) {
	rust := "fn main() {}\n"
	if LooksLikeCode(rust, false) {
		t.Fatal("expected rust gated off without ExtraCodeLanguages")
	}
	if !LooksLikeCode(rust, true) {
		t.Fatal("expected rust to look like code with ExtraCodeLanguages")
	}
}

func TestDetectLanguagePython(t *testing.T) {
	if got := DetectLanguage("def soma(x, y):\n    return x + y\n", false); got != "python" {
		t.Fatalf("got %q, want python", got)
	}
}

func TestParsePythonCountsFunctions(t *testing.T) {
	sum, err := Parse(context.Background(), "python", "def soma(x, y):\n    return x + y\n")
	if err != nil {
		t.Fatal(err)
	}
	if sum.FunctionCount < 1 {
		t.Fatalf("expected at least one function, got %+v", sum)
	}
	if sum.NodeCount < 1 {
		t.Fatalf("expected nonzero node count, got %+v", sum)
	}
}

func TestBuildNodes(t *testing.T) {
	sum := Summary{Language: "python", NodeCount: 10, FunctionCount: 1, ClassCount: 0}
	ast, structNode, err := BuildNodes(nil, sum)
	if err != nil {
		t.Fatal(err)
	}
	if ast == nil || structNode == nil {
		t.Fatal("expected non-nil nodes")
	}
}
