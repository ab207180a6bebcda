package vm

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/sol25/pkg/ast"
)

// Interpreter walks a validated SOL25 AST: it evaluates expressions,
// executes block bodies inside frames, and drives the dispatcher. One
// interpreter runs one program; it is single-threaded and synchronous.
type Interpreter struct {
	Classes *ClassTable
	Objects *ObjectRegistry

	stack *CallStack
	in    *bufio.Reader
	out   io.Writer
	log   commonlog.Logger

	objectClass  *Class
	nilClass     *Class
	trueClass    *Class
	falseClass   *Class
	integerClass *Class
	stringClass  *Class
	blockClass   *Class

	// Attribute maps for the three singletons. The whole program shares one
	// map per constant, matching their process-wide identity.
	singletonAttrs map[Kind]map[string]Value
}

// NewInterpreter creates an interpreter with a bootstrapped class table,
// reading program input from stdin and printing to stdout.
func NewInterpreter(stdin io.Reader, stdout io.Writer) *Interpreter {
	classes := NewClassTable()
	in := &Interpreter{
		Classes: classes,
		Objects: NewObjectRegistry(),
		stack:   NewCallStack(),
		in:      bufio.NewReader(stdin),
		out:     stdout,
		log:     commonlog.GetLogger("sol25.vm"),

		objectClass:  classes.Lookup(ClassObject),
		nilClass:     classes.Lookup(ClassNil),
		trueClass:    classes.Lookup(ClassTrue),
		falseClass:   classes.Lookup(ClassFalse),
		integerClass: classes.Lookup(ClassInteger),
		stringClass:  classes.Lookup(ClassString),
		blockClass:   classes.Lookup(ClassBlock),

		singletonAttrs: map[Kind]map[string]Value{
			KindNil:   make(map[string]Value),
			KindTrue:  make(map[string]Value),
			KindFalse: make(map[string]Value),
		},
	}
	return in
}

// ClassFor returns the class of any value: the user class for objects, the
// corresponding built-in class for everything else.
func (in *Interpreter) ClassFor(v Value) *Class {
	switch v.Kind {
	case KindNil:
		return in.nilClass
	case KindTrue:
		return in.trueClass
	case KindFalse:
		return in.falseClass
	case KindInteger:
		return in.integerClass
	case KindString:
		return in.stringClass
	case KindBlock:
		return in.blockClass
	case KindObject:
		return v.Object.Class
	default:
		return in.objectClass
	}
}

// NewObject allocates and tracks an instance of the given class.
func (in *Interpreter) NewObject(class *Class) *Object {
	o := newObject(class)
	in.Objects.Track(o)
	return o
}

// ---------------------------------------------------------------------------
// Program loading
// ---------------------------------------------------------------------------

// LoadProgram registers every class of a validated program. Classes may
// reference parents declared later in the document, so loading runs in
// three passes: declare names, resolve parents, install methods.
func (in *Interpreter) LoadProgram(p *ast.Program) error {
	declared := make([]*Class, len(p.Classes))
	for i, pc := range p.Classes {
		c, err := in.Classes.Define(pc.Name)
		if err != nil {
			return err
		}
		declared[i] = c
	}

	for i, pc := range p.Classes {
		parent := in.Classes.Lookup(pc.Parent)
		if parent == nil {
			return typeErrorf("class %s: unknown parent %s", pc.Name, pc.Parent)
		}
		declared[i].Superclass = parent
	}
	if err := in.checkHierarchy(declared); err != nil {
		return err
	}

	for i, pc := range p.Classes {
		for _, m := range pc.Methods {
			if err := in.Classes.AddMethod(declared[i], m.Selector, m.Body()); err != nil {
				return err
			}
		}
		in.log.Debugf("registered class %s (parent %s, %d methods)",
			pc.Name, pc.Parent, len(pc.Methods))
	}
	return nil
}

// checkHierarchy rejects inheritance cycles among the loaded classes.
func (in *Interpreter) checkHierarchy(classes []*Class) error {
	limit := in.Classes.Len()
	for _, c := range classes {
		steps := 0
		for current := c; current != nil; current = current.Superclass {
			if steps++; steps > limit {
				return typeErrorf("class %s: inheritance cycle", c.Name)
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Program execution
// ---------------------------------------------------------------------------

// Run bootstraps the program: it requires a Main class responding to a
// parameterless run, allocates a Main instance, and invokes run on it.
func (in *Interpreter) Run() error {
	main := in.Classes.Lookup("Main")
	if main == nil {
		return Errorf(ErrMissingMain, "class Main is not defined")
	}
	run := main.FindMethod("run")
	if run == nil {
		return Errorf(ErrMissingMain, "class Main has no run method")
	}
	if len(run.Parameters) != 0 {
		return Errorf(ErrMissingMain, "run method of Main must be parameterless")
	}

	self := ObjectValue(in.NewObject(main))
	_, err := in.ExecuteBlock(run, nil, nil, &self)
	return err
}

// ExecuteBlock runs a block body: it validates arity, binds `self` (the
// method receiver when supplied, the captured self otherwise), defines the
// parameters in declaration order, and evaluates the statements in order.
// The result is the value of the last statement, Nil for an empty body.
// The frame is popped on every exit path.
func (in *Interpreter) ExecuteBlock(node *ast.Block, captured *Value, args []Value, methodSelf *Value) (result Value, err error) {
	if len(args) != len(node.Parameters) {
		return Value{}, arityErrorf("block expects %d arguments, got %d",
			len(node.Parameters), len(args))
	}

	self := captured
	if methodSelf != nil {
		self = methodSelf
	}

	frame := NewFrame(self)
	for i, param := range node.Parameters {
		if err := frame.DefineParameter(param.Name, args[i]); err != nil {
			return Value{}, err
		}
	}

	in.stack.Push(frame)
	in.log.Debugf("frame push: depth %d", in.stack.Depth())
	defer func() {
		in.stack.Pop()
		in.log.Debugf("frame pop: depth %d", in.stack.Depth())
	}()

	result = NilValue()
	for _, assign := range node.Assigns {
		v, err := in.EvalExpr(assign.Expr())
		if err != nil {
			return Value{}, err
		}
		if err := frame.Assign(assign.Target().Name, v); err != nil {
			return Value{}, err
		}
		result = v
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Expression evaluation
// ---------------------------------------------------------------------------

// EvalExpr evaluates an expression to a Value. Class literals and `super`
// are only meaningful in receiver position and are rejected here.
func (in *Interpreter) EvalExpr(e *ast.Expr) (Value, error) {
	switch {
	case e.Literal() != nil:
		return in.evalLiteral(e.Literal())
	case e.Var() != nil:
		frame, err := in.stack.Current()
		if err != nil {
			return Value{}, err
		}
		return frame.Get(e.Var().Name)
	case e.Send() != nil:
		return in.evalSend(e.Send())
	case e.Block() != nil:
		return in.evalBlockLiteral(e.Block()), nil
	default:
		return Value{}, typeErrorf("expression has no evaluable child")
	}
}

func (in *Interpreter) evalLiteral(l *ast.Literal) (Value, error) {
	switch l.Class {
	case ast.LiteralNil:
		return NilValue(), nil
	case ast.LiteralTrue:
		return TrueValue(), nil
	case ast.LiteralFalse:
		return FalseValue(), nil
	case ast.LiteralInteger:
		n, err := strconv.ParseInt(l.Value, 10, 64)
		if err != nil {
			return Value{}, typeErrorf("integer literal %q is not a signed decimal", l.Value)
		}
		return IntegerValue(n), nil
	case ast.LiteralString:
		return StringValue(decodeStringLiteral(l.Value)), nil
	case ast.LiteralClass:
		return Value{}, typeErrorf("class literal %s outside receiver position", l.Value)
	default:
		return Value{}, typeErrorf("unknown literal class %q", l.Class)
	}
}

// evalBlockLiteral builds a Block value, capturing the current frame's self
// at literal-evaluation time.
func (in *Interpreter) evalBlockLiteral(b *ast.Block) Value {
	var captured *Value
	if frame, err := in.stack.Current(); err == nil {
		captured = frame.Self()
	}
	return BlockVal(&BlockValue{Node: b, Self: captured})
}

// decodeStringLiteral applies the escape sequences \n, \' and \\ in a
// single left-to-right pass. No other escapes are recognized; a backslash
// before any other byte is kept as-is.
func decodeStringLiteral(raw string) string {
	if !strings.ContainsRune(raw, '\\') {
		return raw
	}
	var sb strings.Builder
	sb.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			switch raw[i+1] {
			case 'n':
				sb.WriteByte('\n')
				i++
				continue
			case '\'':
				sb.WriteByte('\'')
				i++
				continue
			case '\\':
				sb.WriteByte('\\')
				i++
				continue
			}
		}
		sb.WriteByte(raw[i])
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// Standard streams
// ---------------------------------------------------------------------------

// ReadLine reads one line from standard input for `String read`, without
// the line terminator. EOF yields an empty string.
func (in *Interpreter) ReadLine() Value {
	line, err := in.in.ReadString('\n')
	if err != nil && line == "" {
		return StringValue("")
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return StringValue(line)
}

// write sends raw bytes to standard output for the print intrinsic.
func (in *Interpreter) write(s string) {
	io.WriteString(in.out, s)
}
