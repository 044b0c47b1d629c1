// Package coderoute implements the CODE route's AST/struct extraction
// (§4.6 point 3): detect the snippet's language, parse it with tree-sitter,
// and summarize its functions/classes into code_ast and code_struct nodes.
//
// Grounded on the teacher's internal/world/ast_treesitter.go
// TreeSitterParser (parser-per-language, ParseCtx, recursive node-type
// switch walking the tree), narrowed from its five-language symbol-graph
// extraction down to the structural summary (function/class counts,
// language, node count) the route needs; Python and Go are always on,
// JavaScript and Rust sit behind config.Ontology.ExtraCodeLanguages per the
// spec's Design Note (b).
package coderoute

import (
	"context"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/node"
)

// Summary is the result of parsing a snippet: its detected language, a
// flattened node-type count (code_ast), and a function/class tally
// (code_struct), per §4.6/§4.10.
type Summary struct {
	Language      string
	NodeCount     int
	FunctionCount int
	ClassCount    int
}

// pythonHints/goHints/rustHints/jsHints back the fast textual pre-check the
// router uses before committing to a full tree-sitter parse (§4.6 point 3:
// "starts with a recognized keyword... or contains balanced
// :/()/-> patterns").
var (
	pythonHints = []string{"def ", "class ", "async def ", "from ", "import "}
	goHints     = []string{"func ", "package ", "type ", "import ("}
	rustHints   = []string{"fn ", "struct ", "impl ", "use ", "mod "}
	jsHints     = []string{"function ", "const ", "=>", "class "}
)

// LooksLikeCode does the cheap textual check the router runs before
// invoking Detect/Parse, avoiding a tree-sitter parse for obviously
// non-code input.
func LooksLikeCode(text string, extraLanguages bool) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if anyHint(t, pythonHints) || anyHint(t, goHints) {
		return true
	}
	if extraLanguages && (anyHint(t, rustHints) || anyHint(t, jsHints)) {
		return true
	}
	return strings.Contains(t, "->") && strings.Contains(t, "(") && strings.Contains(t, ")")
}

func anyHint(t string, hints []string) bool {
	for _, h := range hints {
		if strings.HasPrefix(t, h) || strings.Contains(t, "\n"+h) {
			return true
		}
	}
	return false
}

// DetectLanguage guesses which grammar to parse text with. Returns ""
// when no configured language's hints match.
func DetectLanguage(text string, extraLanguages bool) string {
	t := strings.TrimSpace(text)
	switch {
	case anyHint(t, pythonHints):
		return "python"
	case anyHint(t, goHints):
		return "go"
	case extraLanguages && anyHint(t, rustHints):
		return "rust"
	case extraLanguages && anyHint(t, jsHints):
		return "javascript"
	default:
		return ""
	}
}

// Parse parses text with the grammar for lang and returns its structural
// Summary. Unsupported languages return a zero Summary with lang preserved.
func Parse(ctx context.Context, lang, text string) (Summary, error) {
	sum := Summary{Language: lang}
	if lang == "" {
		return sum, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()

	switch lang {
	case "python":
		parser.SetLanguage(python.GetLanguage())
	case "go":
		parser.SetLanguage(golang.GetLanguage())
	case "rust":
		parser.SetLanguage(rust.GetLanguage())
	case "javascript":
		parser.SetLanguage(javascript.GetLanguage())
	default:
		return sum, nil
	}

	content := []byte(text)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return sum, err
	}
	defer tree.Close()

	walk(tree.RootNode(), lang, &sum)
	return sum, nil
}

func walk(n *sitter.Node, lang string, sum *Summary) {
	sum.NodeCount++
	switch n.Type() {
	case "function_declaration", "function_definition", "function_item", "method_declaration":
		sum.FunctionCount++
	case "class_definition", "class_declaration", "struct_item", "type_declaration", "struct_type":
		sum.ClassCount++
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), lang, sum)
	}
}

// BuildNodes renders sum into the code_ast and code_struct STRUCT nodes
// §4.10 records in the meta-summary.
func BuildNodes(table *atomtable.Table, sum Summary) (ast, structNode *node.Node, err error) {
	ast, err = node.NewStruct(map[string]*node.Node{
		"language":   node.NewText(sum.Language),
		"node_count": node.NewNumber(float64(sum.NodeCount)),
	})
	if err != nil {
		return nil, nil, err
	}
	structNode, err = node.NewStruct(map[string]*node.Node{
		"function_count": node.NewNumber(float64(sum.FunctionCount)),
		"class_count":    node.NewNumber(float64(sum.ClassCount)),
	})
	if err != nil {
		return nil, nil, err
	}
	return ast, structNode, nil
}

// PreseedAnswer builds the CODE route's descriptive preseed answer (§4.6
// point 3: "a preseed answer describing the module").
func PreseedAnswer(sum Summary) string {
	return "Módulo " + sum.Language + " detectado: " +
		strconv.Itoa(sum.FunctionCount) + " função(ões), " + strconv.Itoa(sum.ClassCount) + " classe(s)."
}
