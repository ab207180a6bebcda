package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/sol25/pkg/ast"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestVM(stdin string) (*Interpreter, *bytes.Buffer) {
	var out bytes.Buffer
	return NewInterpreter(strings.NewReader(stdin), &out), &out
}

func newTestInterpreter(stdin string) *Interpreter {
	in, _ := newTestVM(stdin)
	return in
}

// runSource decodes an XML program, runs it, and returns what it printed.
func runSource(t *testing.T, source, stdin string) (string, error) {
	t.Helper()
	prog, err := ast.Decode(strings.NewReader(source))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	interp, out := newTestVM(stdin)
	if err := interp.LoadProgram(prog); err != nil {
		return out.String(), err
	}
	err = interp.Run()
	return out.String(), err
}

// mainProgram wraps run-method statements in the standard program shell.
func mainProgram(statements string) string {
	return `<program language="SOL25"><class name="Main" parent="Object">` +
		`<method selector="run"><block arity="0">` + statements +
		`</block></method></class></program>`
}

// ---------------------------------------------------------------------------
// Bootstrap tests
// ---------------------------------------------------------------------------

func TestRunRequiresMain(t *testing.T) {
	_, err := runSource(t, `<program language="SOL25"/>`, "")
	if !IsKind(err, ErrMissingMain) {
		t.Errorf("missing Main = %v, want missing-main error", err)
	}
}

func TestRunRequiresRunMethod(t *testing.T) {
	_, err := runSource(t, `<program language="SOL25">
		<class name="Main" parent="Object"/>
	</program>`, "")
	if !IsKind(err, ErrMissingMain) {
		t.Errorf("Main without run = %v, want missing-main error", err)
	}
}

func TestRunRejectsParameterizedRun(t *testing.T) {
	_, err := runSource(t, `<program language="SOL25">
		<class name="Main" parent="Object">
			<method selector="run"><block arity="1">
				<parameter name="x" order="1"/>
			</block></method>
		</class>
	</program>`, "")
	if !IsKind(err, ErrMissingMain) {
		t.Errorf("run with a parameter = %v, want missing-main error", err)
	}
}

func TestEmptyRunReturnsCleanly(t *testing.T) {
	out, err := runSource(t, mainProgram(""), "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "" {
		t.Errorf("output = %q, want empty", out)
	}
}

func TestLoadProgramRejectsDuplicateClass(t *testing.T) {
	_, err := runSource(t, `<program language="SOL25">
		<class name="A" parent="Object"/>
		<class name="A" parent="Object"/>
	</program>`, "")
	if !IsKind(err, ErrType) {
		t.Errorf("duplicate class = %v, want type error", err)
	}
}

func TestLoadProgramRejectsUnknownParent(t *testing.T) {
	_, err := runSource(t, `<program language="SOL25">
		<class name="A" parent="B"/>
	</program>`, "")
	if !IsKind(err, ErrType) {
		t.Errorf("unknown parent = %v, want type error", err)
	}
}

func TestLoadProgramAllowsForwardParentReference(t *testing.T) {
	_, err := runSource(t, `<program language="SOL25">
		<class name="A" parent="B"/>
		<class name="B" parent="Object"/>
		<class name="Main" parent="Object">
			<method selector="run"><block arity="0"/></method>
		</class>
	</program>`, "")
	if err != nil {
		t.Errorf("forward parent reference failed: %v", err)
	}
}

func TestLoadProgramRejectsInheritanceCycle(t *testing.T) {
	_, err := runSource(t, `<program language="SOL25">
		<class name="A" parent="B"/>
		<class name="B" parent="A"/>
	</program>`, "")
	if !IsKind(err, ErrType) {
		t.Errorf("inheritance cycle = %v, want type error", err)
	}
}

// ---------------------------------------------------------------------------
// Literal evaluation tests
// ---------------------------------------------------------------------------

func TestDecodeStringLiteral(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"plain", "plain"},
		{`a\nb`, "a\nb"},
		{`it\'s`, "it's"},
		{`back\\slash`, `back\slash`},
		{`\\n`, `\n`},
		{`trailing\`, `trailing\`},
		{`\x`, `\x`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := decodeStringLiteral(tt.raw); got != tt.want {
			t.Errorf("decodeStringLiteral(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestIntegerLiteralRejectsGarbage(t *testing.T) {
	_, err := runSource(t, mainProgram(`
		<assign order="1"><var name="x"/>
			<expr><literal class="Integer" value="12x"/></expr>
		</assign>`), "")
	if !IsKind(err, ErrType) {
		t.Errorf("bad integer literal = %v, want type error", err)
	}
}

func TestClassLiteralOutsideReceiverPosition(t *testing.T) {
	_, err := runSource(t, mainProgram(`
		<assign order="1"><var name="x"/>
			<expr><literal class="class" value="Integer"/></expr>
		</assign>`), "")
	if !IsKind(err, ErrType) {
		t.Errorf("class literal as value = %v, want type error", err)
	}
}

func TestUndefinedVariableRead(t *testing.T) {
	_, err := runSource(t, mainProgram(`
		<assign order="1"><var name="x"/>
			<expr><var name="missing"/></expr>
		</assign>`), "")
	if !IsKind(err, ErrUndefined) {
		t.Errorf("undefined variable = %v, want undefined error", err)
	}
}

// ---------------------------------------------------------------------------
// Block execution tests
// ---------------------------------------------------------------------------

func TestExecuteBlockPopsFrameOnError(t *testing.T) {
	in := newTestInterpreter("")
	body := &ast.Block{
		Assigns: []*ast.Assign{{
			Order: 1,
			Vars:  []*ast.Var{{Name: "x"}},
			Exprs: []*ast.Expr{{Vars: []*ast.Var{{Name: "missing"}}}},
		}},
	}

	_, err := in.ExecuteBlock(body, nil, nil, nil)
	if !IsKind(err, ErrUndefined) {
		t.Fatalf("ExecuteBlock = %v, want undefined error", err)
	}
	if in.stack.Depth() != 0 {
		t.Errorf("stack depth after error = %d, want 0", in.stack.Depth())
	}
}

func TestExecuteBlockArity(t *testing.T) {
	in := newTestInterpreter("")
	body := &ast.Block{Parameters: []*ast.Parameter{{Name: "x", Order: 1}}}

	if _, err := in.ExecuteBlock(body, nil, nil, nil); !IsKind(err, ErrArity) {
		t.Errorf("missing argument = %v, want arity error", err)
	}
	if _, err := in.ExecuteBlock(body, nil, []Value{NilValue(), NilValue()}, nil); !IsKind(err, ErrArity) {
		t.Errorf("surplus argument = %v, want arity error", err)
	}
}

func TestExecuteBlockEmptyBodyReturnsNil(t *testing.T) {
	in := newTestInterpreter("")
	v, err := in.ExecuteBlock(&ast.Block{}, nil, nil, nil)
	if err != nil || !v.IsNil() {
		t.Errorf("empty block = %v, %v, want nil", v, err)
	}
}

// ---------------------------------------------------------------------------
// End-to-end scenarios
// ---------------------------------------------------------------------------

func TestScenarioArithmeticPrint(t *testing.T) {
	// (Integer new plus: 2) asString print
	out, err := runSource(t, mainProgram(`
		<assign order="1"><var name="r"/><expr>
			<send selector="print"><expr>
				<send selector="asString"><expr>
					<send selector="plus:"><expr>
						<send selector="new"><expr><literal class="class" value="Integer"/></expr></send>
					</expr><arg order="1"><expr><literal class="Integer" value="2"/></expr></arg></send>
				</expr></send>
			</expr></send>
		</expr></assign>`), "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "2" {
		t.Errorf("output = %q, want %q", out, "2")
	}
}

func TestScenarioConditional(t *testing.T) {
	// (5 greaterThan: 2) ifTrue: ['y' print] ifFalse: ['n' print]
	out, err := runSource(t, mainProgram(`
		<assign order="1"><var name="r"/><expr>
			<send selector="ifTrue:ifFalse:">
				<expr><send selector="greaterThan:">
					<expr><literal class="Integer" value="5"/></expr>
					<arg order="1"><expr><literal class="Integer" value="2"/></expr></arg>
				</send></expr>
				<arg order="1"><expr><block arity="0">
					<assign order="1"><var name="t"/><expr>
						<send selector="print"><expr><literal class="String" value="y"/></expr></send>
					</expr></assign>
				</block></expr></arg>
				<arg order="2"><expr><block arity="0">
					<assign order="1"><var name="t"/><expr>
						<send selector="print"><expr><literal class="String" value="n"/></expr></send>
					</expr></assign>
				</block></expr></arg>
			</send>
		</expr></assign>`), "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "y" {
		t.Errorf("output = %q, want %q", out, "y")
	}
}

func TestScenarioWhileLoop(t *testing.T) {
	// self i: 1.
	// [(self i greaterThan: 3) not] whileTrue:
	//     [self i asString print. self i: (self i plus: 1)]
	// Blocks see outer state through the captured self, so the counter
	// lives in an attribute.
	selfI := `<send selector="i"><expr><var name="self"/></expr></send>`
	out, err := runSource(t, mainProgram(`
		<assign order="1"><var name="a"/><expr>
			<send selector="i:"><expr><var name="self"/></expr>
				<arg order="1"><expr><literal class="Integer" value="1"/></expr></arg>
			</send>
		</expr></assign>
		<assign order="2"><var name="b"/><expr>
			<send selector="whileTrue:">
				<expr><block arity="0">
					<assign order="1"><var name="c"/><expr>
						<send selector="not"><expr>
							<send selector="greaterThan:">
								<expr>`+selfI+`</expr>
								<arg order="1"><expr><literal class="Integer" value="3"/></expr></arg>
							</send>
						</expr></send>
					</expr></assign>
				</block></expr>
				<arg order="1"><expr><block arity="0">
					<assign order="1"><var name="d"/><expr>
						<send selector="print"><expr>
							<send selector="asString"><expr>`+selfI+`</expr></send>
						</expr></send>
					</expr></assign>
					<assign order="2"><var name="e"/><expr>
						<send selector="i:"><expr><var name="self"/></expr>
							<arg order="1"><expr>
								<send selector="plus:">
									<expr>`+selfI+`</expr>
									<arg order="1"><expr><literal class="Integer" value="1"/></expr></arg>
								</send>
							</expr></arg>
						</send>
					</expr></assign>
				</block></expr></arg>
			</send>
		</expr></assign>`), "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "123" {
		t.Errorf("output = %q, want %q", out, "123")
	}
}

func TestScenarioTimesRepeat(t *testing.T) {
	// 3 timesRepeat: [:n | n asString print]
	out, err := runSource(t, mainProgram(`
		<assign order="1"><var name="r"/><expr>
			<send selector="timesRepeat:">
				<expr><literal class="Integer" value="3"/></expr>
				<arg order="1"><expr><block arity="1">
					<parameter name="n" order="1"/>
					<assign order="1"><var name="t"/><expr>
						<send selector="print"><expr>
							<send selector="asString"><expr><var name="n"/></expr></send>
						</expr></send>
					</expr></assign>
				</block></expr></arg>
			</send>
		</expr></assign>`), "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "123" {
		t.Errorf("output = %q, want %q", out, "123")
	}
}

func TestScenarioSuperSend(t *testing.T) {
	// A defines m -> 1; B extends A, m -> (super m) plus: 10.
	// B new m asString print -> 11
	out, err := runSource(t, `<program language="SOL25">
		<class name="A" parent="Object">
			<method selector="m"><block arity="0">
				<assign order="1"><var name="x"/><expr><literal class="Integer" value="1"/></expr></assign>
			</block></method>
		</class>
		<class name="B" parent="A">
			<method selector="m"><block arity="0">
				<assign order="1"><var name="x"/><expr>
					<send selector="plus:">
						<expr><send selector="m"><expr><var name="super"/></expr></send></expr>
						<arg order="1"><expr><literal class="Integer" value="10"/></expr></arg>
					</send>
				</expr></assign>
			</block></method>
		</class>
		<class name="Main" parent="Object">
			<method selector="run"><block arity="0">
				<assign order="1"><var name="r"/><expr>
					<send selector="print"><expr>
						<send selector="asString"><expr>
							<send selector="m"><expr>
								<send selector="new"><expr><literal class="class" value="B"/></expr></send>
							</expr></send>
						</expr></send>
					</expr></send>
				</expr></assign>
			</block></method>
		</class>
	</program>`, "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "11" {
		t.Errorf("output = %q, want %q", out, "11")
	}
}

func TestScenarioReadParse(t *testing.T) {
	// (String read) asInteger asString print
	program := mainProgram(`
		<assign order="1"><var name="r"/><expr>
			<send selector="print"><expr>
				<send selector="asString"><expr>
					<send selector="asInteger"><expr>
						<send selector="read"><expr><literal class="class" value="String"/></expr></send>
					</expr></send>
				</expr></send>
			</expr></send>
		</expr></assign>`)

	out, err := runSource(t, program, "42\n")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "42" {
		t.Errorf("output = %q, want %q", out, "42")
	}

	out, err = runSource(t, program, "abc\n")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "nil" {
		t.Errorf("output = %q, want %q", out, "nil")
	}
}

func TestScenarioDelegation(t *testing.T) {
	// MyInt subclasses Integer; (MyInt new) plus: 3 -> Integer(3)
	out, err := runSource(t, `<program language="SOL25">
		<class name="MyInt" parent="Integer"/>
		<class name="Main" parent="Object">
			<method selector="run"><block arity="0">
				<assign order="1"><var name="r"/><expr>
					<send selector="print"><expr>
						<send selector="asString"><expr>
							<send selector="plus:">
								<expr><send selector="new"><expr><literal class="class" value="MyInt"/></expr></send></expr>
								<arg order="1"><expr><literal class="Integer" value="3"/></expr></arg>
							</send>
						</expr></send>
					</expr></send>
				</expr></assign>
			</block></method>
		</class>
	</program>`, "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "3" {
		t.Errorf("output = %q, want %q", out, "3")
	}
}

func TestScenarioSingletonIdentity(t *testing.T) {
	// ((Nil new) identicalTo: nil) asString print -> "true"
	out, err := runSource(t, mainProgram(`
		<assign order="1"><var name="r"/><expr>
			<send selector="print"><expr>
				<send selector="asString"><expr>
					<send selector="identicalTo:">
						<expr><send selector="new"><expr><literal class="class" value="Nil"/></expr></send></expr>
						<arg order="1"><expr><literal class="Nil" value="nil"/></expr></arg>
					</send>
				</expr></send>
			</expr></send>
		</expr></assign>`), "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "true" {
		t.Errorf("output = %q, want %q", out, "true")
	}
}

func TestScenarioEscapedStringPrint(t *testing.T) {
	out, err := runSource(t, mainProgram(`
		<assign order="1"><var name="r"/><expr>
			<send selector="print"><expr><literal class="String" value="a\nb\\c\'d"/></expr></send>
		</expr></assign>`), "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "a\nb\\c'd" {
		t.Errorf("output = %q, want %q", out, "a\nb\\c'd")
	}
}

func TestMethodArityMismatchAtCallTime(t *testing.T) {
	// Selector m is parameterless but the block takes one parameter.
	_, err := runSource(t, `<program language="SOL25">
		<class name="A" parent="Object">
			<method selector="m"><block arity="1">
				<parameter name="x" order="1"/>
			</block></method>
		</class>
		<class name="Main" parent="Object">
			<method selector="run"><block arity="0">
				<assign order="1"><var name="r"/><expr>
					<send selector="m"><expr>
						<send selector="new"><expr><literal class="class" value="A"/></expr></send>
					</expr></send>
				</expr></assign>
			</block></method>
		</class>
	</program>`, "")
	if !IsKind(err, ErrArity) {
		t.Errorf("method arity mismatch = %v, want arity error", err)
	}
}

func TestAssignToParameterCollides(t *testing.T) {
	_, err := runSource(t, `<program language="SOL25">
		<class name="Main" parent="Object">
			<method selector="run"><block arity="0">
				<assign order="1"><var name="r"/><expr>
					<send selector="value:">
						<expr><block arity="1">
							<parameter name="p" order="1"/>
							<assign order="1"><var name="p"/><expr><literal class="Integer" value="2"/></expr></assign>
						</block></expr>
						<arg order="1"><expr><literal class="Integer" value="1"/></expr></arg>
					</send>
				</expr></assign>
			</block></method>
		</class>
	</program>`, "")
	if !IsKind(err, ErrCollision) {
		t.Errorf("assignment to parameter = %v, want collision error", err)
	}
}
