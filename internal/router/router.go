// Package router implements the Meta-Transformer (§4.6): the first stage of
// every turn, which classifies raw text into one of five routes (math,
// logic, code, instinct, text), builds that route's Φ-plan (declared
// operator chain + VM program + constant pool + digest), and — for fast
// paths — a preseed answer the scheduler never has to compute.
//
// Grounded on the teacher's internal/shards dispatch-by-classification shape
// (a fixed ordered chain of cheap structural tests picking a handler before
// falling back to the general-purpose path), generalized from shard
// selection to route selection.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/metanucleus/metanucleus/internal/atomtable"
	"github.com/metanucleus/metanucleus/internal/calcmath"
	"github.com/metanucleus/metanucleus/internal/coderoute"
	"github.com/metanucleus/metanucleus/internal/config"
	"github.com/metanucleus/metanucleus/internal/fingerprint"
	"github.com/metanucleus/metanucleus/internal/language"
	"github.com/metanucleus/metanucleus/internal/node"
	"github.com/metanucleus/metanucleus/internal/vm"
)

// Route identifies which of the five classifications a turn took (§4.6).
type Route string

const (
	RouteMath     Route = "math"
	RouteLogic    Route = "logic"
	RouteCode     Route = "code"
	RouteInstinct Route = "instinct"
	RouteText     Route = "text"
)

// Plan is the compiled Φ-plan (§3.5): the declared operator chain, the VM
// program realizing it, the constant pool the program indexes into, and a
// content digest over all three.
type Plan struct {
	Route       Route
	Description string
	Ops         []string
	Program     *vm.Program
	Digest      fingerprint.Digest
}

// Result is the Meta-Transformer's output (§4.6 RouteResult).
type Result struct {
	Route          Route
	TraceLabel     string
	HasPreseed     bool
	PreseedAnswer  string
	PreseedQuality float64

	Plan Plan

	LanguageProfile     language.Profile
	LanguageProfileNode *node.Node

	StructNode *node.Node // route-specific descriptive STRUCT (msg/LOGIC payload/...)
	LCMeta     *node.Node // TEXT route only
	CodeAST    *node.Node
	CodeSummary *node.Node
	MathAST    *node.Node

	// OntologyFacts are REL nodes the LOGIC route wants asserted into the
	// session's ontology engine before the scheduler runs.
	OntologyFacts []*node.Node

	// SeedOps are OP nodes to push (in order) onto ISR.OpsQueue. Only the
	// TEXT route populates this; fast routes leave the queue empty so the
	// scheduler halts QUEUE_EMPTY immediately after the preseed answer is
	// already in place (§4.6: "Fast paths additionally... push it onto ISR
	// as the initial answer").
	SeedOps []*node.Node

	MetaRoute *node.Node
	MetaInput *node.Node
	MetaPlan  *node.Node
}

// Classify runs the fixed-order route chain (MATH → LOGIC → CODE →
// INSTINCT → TEXT, first match wins) over text and returns the full
// RouteResult. Classify itself never errors: when the LOGIC or CODE builder
// fails mid-construction, classification continues down the chain to
// INSTINCT and then TEXT. The resulting route records nothing about the
// failed builder; the TEXT parse structure's modifier field stays empty.
func Classify(text string, table *atomtable.Table, cfg *config.Config) *Result {
	trimmed := strings.TrimSpace(text)
	profile := language.Detect(trimmed)

	var res *Result
	switch {
	case calcmath.IsMathExpression(trimmed):
		res = classifyMath(table, trimmed)
	case logicKeyword(trimmed) != "":
		if r, ok := classifyLogic(table, trimmed, profile); ok {
			res = r
		}
	case coderoute.LooksLikeCode(trimmed, cfg.Ontology.ExtraCodeLanguages):
		if r, ok := classifyCode(table, trimmed, cfg); ok {
			res = r
		}
	}
	if res == nil {
		if r, ok := classifyInstinct(table, trimmed, profile); ok {
			res = r
		}
	}
	if res == nil {
		res = classifyText(table, trimmed, profile)
	}

	res.LanguageProfile = profile
	res.LanguageProfileNode = mustLanguageProfileNode(profile)
	res.MetaRoute = node.NewText(string(res.Route))
	res.MetaInput = mustMetaInput(trimmed)
	res.MetaPlan = mustMetaPlan(res.Plan)
	return res
}

func mustLanguageProfileNode(p language.Profile) *node.Node {
	scores := make(map[string]*node.Node, len(p.Scores))
	for code, score := range p.Scores {
		scores[string(code)] = node.NewNumber(score)
	}
	scoresStruct, err := node.NewStruct(scores)
	if err != nil {
		scoresStruct = node.Nil
	}
	n, err := node.NewStruct(map[string]*node.Node{
		"code":       node.NewText(string(p.Code)),
		"confidence": node.NewNumber(p.Confidence),
		"scores":     scoresStruct,
	})
	if err != nil {
		return node.Nil
	}
	return n
}

func mustMetaInput(trimmed string) *node.Node {
	digest := fingerprint.MustOf(node.NewText(trimmed))
	n, err := node.NewStruct(map[string]*node.Node{
		"text":   node.NewText(trimmed),
		"digest": node.NewText(digest.String()),
	})
	if err != nil {
		return node.Nil
	}
	return n
}

func mustMetaPlan(plan Plan) *node.Node {
	n, err := node.NewStruct(map[string]*node.Node{
		"digest": node.NewText(plan.Digest.String()),
		"chain":  node.NewText(strings.Join(plan.Ops, "->")),
	})
	if err != nil {
		return node.Nil
	}
	return n
}

// planDigest computes the plan's 128-bit content digest over exactly
// (ops, description, constants) per §3.5/§8 P5 — reordering constants of
// equal value is forbidden, so the digest is taken over a STRUCT built from
// these three fields in a fixed shape, reusing the node fingerprint rather
// than a bespoke hash.
func planDigest(ops []string, description string, constants []*node.Node) fingerprint.Digest {
	opNodes := make([]*node.Node, len(ops))
	for i, o := range ops {
		opNodes[i] = node.NewText(o)
	}
	n, err := node.NewStruct(map[string]*node.Node{
		"ops":         node.NewList(opNodes...),
		"description": node.NewText(description),
		"constants":   node.NewList(constants...),
	})
	if err != nil {
		return fingerprint.Digest{}
	}
	return fingerprint.MustOf(n)
}

func fastProgram(answer *node.Node) *vm.Program {
	return &vm.Program{
		Instructions: []vm.Instruction{
			{Op: vm.OpPushConst, Operand: 0},
			{Op: vm.OpStoreAnswer},
			{Op: vm.OpHalt},
		},
		Constants: []*node.Node{answer},
	}
}

func textProgram(payload *node.Node) *vm.Program {
	return &vm.Program{
		Instructions: []vm.Instruction{
			{Op: vm.OpPhiNormalize},
			{Op: vm.OpPhiInfer},
			{Op: vm.OpPhiSummarize},
			{Op: vm.OpPushConst, Operand: 0},
			{Op: vm.OpStoreAnswer},
			{Op: vm.OpHalt},
		},
		Constants: []*node.Node{payload},
	}
}

// --- MATH ---

func classifyMath(table *atomtable.Table, trimmed string) *Result {
	result, ast, err := calcmath.Eval(trimmed)
	answerText := trimmed + " = " + calcmath.FormatResult(result)
	if err != nil {
		answerText = trimmed + " = 0"
	}
	answerNode := node.NewText(answerText)

	mathAST, astErr := node.NewStruct(map[string]*node.Node{
		"operator":      node.NewText("EXPRESSION"),
		"operand_count": node.NewNumber(float64(ast.OperandCount())),
		"language":      node.NewText("math"),
	})
	if astErr != nil {
		mathAST = node.Nil
	}

	ops := []string{}
	plan := Plan{
		Route:       RouteMath,
		Description: "safe arithmetic evaluation",
		Ops:         ops,
		Program:     fastProgram(answerNode),
	}
	plan.Digest = planDigest(ops, plan.Description, plan.Program.Constants)

	return &Result{
		Route:          RouteMath,
		TraceLabel:     "MATH",
		HasPreseed:     true,
		PreseedAnswer:  answerText,
		PreseedQuality: 1.0,
		Plan:           plan,
		MathAST:        mathAST,
	}
}

// --- LOGIC ---

func logicKeyword(trimmed string) string {
	for _, kw := range []string{"FACT", "RULE", "QUERY"} {
		if len(trimmed) > len(kw) && strings.EqualFold(trimmed[:len(kw)], kw) && isSpace(trimmed[len(kw)]) {
			return kw
		}
		if strings.EqualFold(trimmed, kw) {
			return kw
		}
	}
	return ""
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }

func classifyLogic(table *atomtable.Table, trimmed string, profile language.Profile) (*Result, bool) {
	kw := logicKeyword(trimmed)
	payload := strings.TrimSpace(trimmed[min(len(kw), len(trimmed)):])

	var (
		answer string
		facts  []*node.Node
		err    error
	)
	switch kw {
	case "FACT":
		answer, facts, err = buildFact(table, payload)
	case "RULE":
		answer, facts, err = buildRule(table, payload)
	case "QUERY":
		answer, err = buildQuery(payload)
	default:
		return nil, false
	}
	if err != nil {
		return nil, false
	}

	answerNode := node.NewText(answer)
	ops := []string{}
	plan := Plan{
		Route:       RouteLogic,
		Description: "logic payload: " + kw,
		Ops:         ops,
		Program:     fastProgram(answerNode),
	}
	plan.Digest = planDigest(ops, plan.Description, plan.Program.Constants)

	structNode, structErr := node.NewStruct(map[string]*node.Node{
		"keyword": node.NewText(kw),
		"payload": node.NewText(payload),
	})
	if structErr != nil {
		structNode = node.Nil
	}

	return &Result{
		Route:          RouteLogic,
		TraceLabel:     fmt.Sprintf("LOGIC[%s]", kw),
		HasPreseed:     true,
		PreseedAnswer:  answer,
		PreseedQuality: 1.0,
		Plan:           plan,
		StructNode:     structNode,
		OntologyFacts:  facts,
	}, true
}

// relationWords maps a logic payload's middle token to the REL label it
// asserts (§3.2 REL_SIGNATURES).
var relationWords = map[string]string{
	"IS_A":    "IS_A",
	"PART_OF": "PART_OF",
	"CAUSE":   "CAUSE",
	"EQUAL":   "EQUAL",
}

func buildFact(table *atomtable.Table, payload string) (string, []*node.Node, error) {
	if payload == "" {
		return "", nil, fmt.Errorf("logic: FACT requires a payload")
	}
	fields := strings.Fields(payload)
	if len(fields) == 3 {
		if label, ok := relationWords[strings.ToUpper(fields[1])]; ok {
			rel, err := buildBinaryRelation(table, label, fields[0], fields[2])
			if err != nil {
				return "", nil, err
			}
			return fmt.Sprintf("Fato registrado: %s(%s, %s).", label, fields[0], fields[2]), []*node.Node{rel}, nil
		}
	}
	entity, err := node.NewEntity(table, payload)
	if err != nil {
		return "", nil, err
	}
	rel, err := node.NewRel(table, "FACT", entity)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Fato registrado: %s.", payload), []*node.Node{rel}, nil
}

func buildBinaryRelation(table *atomtable.Table, label, a, b string) (*node.Node, error) {
	ea, err := node.NewEntity(table, a)
	if err != nil {
		return nil, err
	}
	eb, err := node.NewEntity(table, b)
	if err != nil {
		return nil, err
	}
	return node.NewRel(table, label, ea, eb)
}

func buildRule(table *atomtable.Table, payload string) (string, []*node.Node, error) {
	upper := strings.ToUpper(payload)
	ifIdx := strings.Index(upper, "IF ")
	thenIdx := strings.Index(upper, " THEN ")
	if ifIdx != 0 || thenIdx < 0 {
		return fmt.Sprintf("Regra registrada (não avaliada no turno): %s", payload), nil, nil
	}
	cond := strings.TrimSpace(payload[len("IF "):thenIdx])
	concl := strings.TrimSpace(payload[thenIdx+len(" THEN "):])
	if cond == "" || concl == "" {
		return "", nil, fmt.Errorf("logic: malformed RULE payload")
	}
	rel, err := buildBinaryRelation(table, "CAUSE", cond, concl)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Regra registrada: CAUSE(%s, %s).", cond, concl), []*node.Node{rel}, nil
}

func buildQuery(payload string) (string, error) {
	if payload == "" {
		return "", fmt.Errorf("logic: QUERY requires a payload")
	}
	return fmt.Sprintf("Consulta recebida para %q: nenhuma evidência acumulada neste turno.", payload), nil
}

// --- CODE ---

func classifyCode(table *atomtable.Table, trimmed string, cfg *config.Config) (*Result, bool) {
	lang := coderoute.DetectLanguage(trimmed, cfg.Ontology.ExtraCodeLanguages)
	if lang == "" {
		return nil, false
	}
	sum, err := coderoute.Parse(context.Background(), lang, trimmed)
	if err != nil {
		return nil, false
	}
	astNode, structNode, err := coderoute.BuildNodes(table, sum)
	if err != nil {
		return nil, false
	}
	answer := coderoute.PreseedAnswer(sum)
	answerNode := node.NewText(answer)

	ops := []string{}
	plan := Plan{
		Route:       RouteCode,
		Description: "code structure extraction: " + lang,
		Ops:         ops,
		Program:     fastProgram(answerNode),
	}
	plan.Digest = planDigest(ops, plan.Description, plan.Program.Constants)

	return &Result{
		Route:          RouteCode,
		TraceLabel:     "CODE",
		HasPreseed:     true,
		PreseedAnswer:  answer,
		PreseedQuality: 1.0,
		Plan:           plan,
		CodeAST:        astNode,
		CodeSummary:    structNode,
	}, true
}

// --- INSTINCT ---

var yesNoWords = map[string][]string{
	"pt": {"sim", "não", "nao"},
	"en": {"yes", "no"},
	"es": {"sí", "si", "no"},
	"fr": {"oui", "non"},
	"it": {"sì", "si", "no"},
	"de": {"ja", "nein"},
}

func classifyInstinct(table *atomtable.Table, trimmed string, profile language.Profile) (*Result, bool) {
	lower := strings.ToLower(trimmed)
	kind := ""
	if language.IsGreeting(trimmed, profile.Code) {
		kind = "GREETING"
	} else {
		codes := []string{string(profile.Code)}
		if profile.Code == language.Unknown {
			// A lone yes/no word seldom scores against any stopword lexicon,
			// so an undetected language is checked against every list.
			codes = []string{"pt", "en", "es", "fr", "it", "de"}
		}
		for _, c := range codes {
			for _, w := range yesNoWords[c] {
				if lower == w {
					kind = "YESNO"
				}
			}
		}
	}
	if kind == "" {
		return nil, false
	}

	answer := instinctTemplate(kind, profile.Code, trimmed)
	answerNode := node.NewText(answer)

	ops := []string{}
	plan := Plan{
		Route:       RouteInstinct,
		Description: "instinct lexicon match: " + kind,
		Ops:         ops,
		Program:     fastProgram(answerNode),
	}
	plan.Digest = planDigest(ops, plan.Description, plan.Program.Constants)

	structNode, err := node.NewStruct(map[string]*node.Node{
		"intent": node.NewText(strings.ToLower(kind)),
		"text":   node.NewText(trimmed),
	})
	if err != nil {
		structNode = node.Nil
	}

	return &Result{
		Route:          RouteInstinct,
		TraceLabel:     fmt.Sprintf("INSTINCT[%s]", kind),
		HasPreseed:     true,
		PreseedAnswer:  answer,
		PreseedQuality: 0.9,
		Plan:           plan,
		StructNode:     structNode,
	}, true
}

func instinctTemplate(kind string, code language.Code, original string) string {
	if kind == "YESNO" {
		return "Entendido."
	}
	switch code {
	case language.English:
		return "Hello! How can I help, " + strings.TrimSpace(original) + "?"
	case language.Spanish:
		return "¡Hola! ¿Cómo puedo ayudar?"
	case language.French:
		return "Bonjour ! Comment puis-je aider ?"
	case language.Italian:
		return "Ciao! Come posso aiutare?"
	case language.German:
		return "Hallo! Wie kann ich helfen?"
	default:
		return "Olá! Como posso ajudar? " + strings.TrimSpace(original)
	}
}

// --- TEXT ---

func classifyText(table *atomtable.Table, trimmed string, profile language.Profile) *Result {
	msgFields := map[string]*node.Node{"text": node.NewText(trimmed)}
	msg, err := node.NewStruct(msgFields)
	if err != nil {
		msg = node.Nil
	}

	ops := []string{"NORMALIZE", "INFER", "SUMMARIZE"}
	payload := mustLCMetaCalc(trimmed, profile)
	plan := Plan{
		Route:       RouteText,
		Description: "fallback natural-language pipeline",
		Ops:         ops,
		Program:     textProgram(payload),
	}
	plan.Digest = planDigest(ops, plan.Description, plan.Program.Constants)

	var intentOp *node.Node
	if msg.Kind == node.KindStruct {
		intentOp, err = node.NewOp(table, "INTENT", msg)
	}
	normalizeOp, nerr := node.NewOp(table, "NORMALIZE")
	inferOp, ierr := node.NewOp(table, "INFER")
	summarizeOp, serr := node.NewOp(table, "SUMMARIZE")

	var seedOps []*node.Node
	if err == nil && nerr == nil && ierr == nil && serr == nil && intentOp != nil {
		seedOps = []*node.Node{intentOp, normalizeOp, inferOp, summarizeOp}
	}

	structNode, perr := node.NewStruct(parseStructFields(trimmed, profile))
	if perr != nil {
		structNode = node.Nil
	}

	lcMeta, lerr := node.NewStruct(map[string]*node.Node{
		"language_profile": mustLanguageProfileNode(profile),
		"parse":            structNode,
	})
	if lerr != nil {
		lcMeta = node.Nil
	}

	return &Result{
		Route:      RouteText,
		TraceLabel: "TEXT",
		HasPreseed: false,
		Plan:       plan,
		StructNode: structNode,
		LCMeta:     lcMeta,
		SeedOps:    seedOps,
	}
}

func mustLCMetaCalc(trimmed string, profile language.Profile) *node.Node {
	n, err := node.NewStruct(map[string]*node.Node{
		"label":    node.NewText("STATE_QUERY"),
		"input":    node.NewText(trimmed),
		"language": node.NewText(string(profile.Code)),
	})
	if err != nil {
		return node.Nil
	}
	return n
}

var questionWords = []string{"como", "quando", "onde", "quem", "qual", "how", "when", "where", "who", "what", "why", "comment", "quand", "qui", "quoi", "pourquoi"}

func parseStructFields(trimmed string, profile language.Profile) map[string]*node.Node {
	tokens := strings.Fields(trimmed)
	sentenceType := "statement"
	negation := false
	lower := strings.ToLower(trimmed)
	if strings.HasSuffix(trimmed, "?") || strings.Contains(trimmed, "¿") {
		sentenceType = "question"
	}
	for _, neg := range []string{"não", "not", " no ", "nunca", "never", "pas"} {
		if strings.Contains(lower, neg) {
			negation = true
			break
		}
	}
	subject, action, object := "", "", ""
	if len(tokens) > 0 {
		subject = tokens[0]
	}
	if len(tokens) > 1 {
		action = tokens[1]
	}
	if len(tokens) > 2 {
		object = strings.Join(tokens[2:], " ")
	}
	focus := ""
	for _, w := range questionWords {
		if strings.Contains(lower, w) {
			focus = w
			break
		}
	}
	return map[string]*node.Node{
		"action":         node.NewText(action),
		"subject":        node.NewText(subject),
		"object":         node.NewText(object),
		"modifier":       node.NewText(""),
		"relations":      node.NewList(),
		"negation":       node.NewBool(negation),
		"question_focus": node.NewText(focus),
		"sentence_type":  node.NewText(sentenceType),
		"language":       node.NewText(string(profile.Code)),
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
