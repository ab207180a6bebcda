package vm

import (
	"strings"

	"github.com/chazu/sol25/pkg/ast"
)

// receiver is the result of evaluating a send's receiver expression. A
// class-name literal yields a ClassRef, the identifier `super` yields the
// super sentinel, everything else a Value. The sentinel is not a Value and
// can never leak into a general-purpose expression.
type receiver struct {
	class *Class
	super bool
	value Value
}

// SelectorArity returns the static arity of a selector: the number of
// colons it contains.
func SelectorArity(selector string) int {
	return strings.Count(selector, ":")
}

// ---------------------------------------------------------------------------
// Send evaluation
// ---------------------------------------------------------------------------

func (in *Interpreter) evalSend(s *ast.Send) (Value, error) {
	rcv, err := in.evalReceiver(s.Receiver())
	if err != nil {
		return Value{}, err
	}

	args := make([]Value, len(s.Args))
	for i, arg := range s.Args {
		v, err := in.EvalExpr(arg.Expr())
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return in.dispatch(rcv, s.Selector, args)
}

func (in *Interpreter) evalReceiver(e *ast.Expr) (receiver, error) {
	if v := e.Var(); v != nil && v.Name == "super" {
		return receiver{super: true}, nil
	}
	if l := e.Literal(); l != nil && l.Class == ast.LiteralClass {
		c := in.Classes.Lookup(l.Value)
		if c == nil {
			return receiver{}, undefinedErrorf("undefined class %s", l.Value)
		}
		return receiver{class: c}, nil
	}
	v, err := in.EvalExpr(e)
	if err != nil {
		return receiver{}, err
	}
	return receiver{value: v}, nil
}

// dispatch checks the selector/argument agreement, then routes to the
// matching form of send.
func (in *Interpreter) dispatch(rcv receiver, selector string, args []Value) (Value, error) {
	if len(args) != SelectorArity(selector) {
		return Value{}, dnuErrorf(in.describeReceiver(rcv), selector)
	}

	switch {
	case rcv.class != nil:
		in.log.Debugf("send: class %s >> %s", rcv.class.Name, selector)
		return in.classMessage(rcv.class, selector, args)
	case rcv.super:
		in.log.Debugf("send: super >> %s", selector)
		return in.superSend(selector, args)
	default:
		in.log.Debugf("send: %s >> %s", rcv.value.Describe(), selector)
		return in.sendValue(rcv.value, selector, args, false)
	}
}

func (in *Interpreter) describeReceiver(rcv receiver) string {
	switch {
	case rcv.class != nil:
		return "class " + rcv.class.Name
	case rcv.super:
		return "super"
	default:
		return rcv.value.Describe()
	}
}

// Send dispatches a message to a value receiver through the full precedence
// ladder. It is the programmatic entry point equivalent to a non-super send.
func (in *Interpreter) Send(recv Value, selector string, args []Value) (Value, error) {
	if len(args) != SelectorArity(selector) {
		return Value{}, dnuErrorf(recv.Describe(), selector)
	}
	return in.sendValue(recv, selector, args, false)
}

// ---------------------------------------------------------------------------
// Phase 1: class messages
// ---------------------------------------------------------------------------

func (in *Interpreter) classMessage(c *Class, selector string, args []Value) (Value, error) {
	switch selector {
	case "new":
		return in.classNew(c)
	case "from:":
		return in.classFrom(c, args[0])
	case "read":
		if c == in.stringClass {
			return in.ReadLine(), nil
		}
	}
	return Value{}, dnuErrorf("class "+c.Name, selector)
}

func (in *Interpreter) classNew(c *Class) (Value, error) {
	switch c {
	case in.nilClass:
		return NilValue(), nil
	case in.trueClass:
		return TrueValue(), nil
	case in.falseClass:
		return FalseValue(), nil
	case in.integerClass:
		return IntegerValue(0), nil
	case in.stringClass:
		return StringValue(""), nil
	case in.blockClass:
		return Value{}, valueErrorf("class Block cannot be instantiated")
	}

	obj := in.NewObject(c)
	switch {
	case c.IsSubclassOf(in.integerClass):
		obj.SetInternal(IntegerValue(0))
	case c.IsSubclassOf(in.stringClass):
		obj.SetInternal(StringValue(""))
	}
	return ObjectValue(obj), nil
}

func (in *Interpreter) classFrom(c *Class, source Value) (Value, error) {
	sourceClass := in.ClassFor(source)
	if !sourceClass.IsSubclassOf(c) && !c.IsSubclassOf(sourceClass) {
		return Value{}, valueErrorf("%s from: %s: incompatible classes",
			c.Name, source.Describe())
	}

	switch c {
	case in.nilClass:
		return NilValue(), nil
	case in.trueClass:
		return TrueValue(), nil
	case in.falseClass:
		return FalseValue(), nil
	case in.integerClass:
		if n, ok := integerContent(source); ok {
			return IntegerValue(n), nil
		}
		return Value{}, valueErrorf("Integer from: %s: not an integer", source.Describe())
	case in.stringClass:
		if s, ok := stringContent(source); ok {
			return StringValue(s), nil
		}
		return Value{}, valueErrorf("String from: %s: not a string", source.Describe())
	case in.blockClass:
		return Value{}, valueErrorf("class Block cannot be instantiated")
	}

	obj := in.NewObject(c)
	switch source.Kind {
	case KindInteger, KindString:
		obj.SetInternal(source)
	case KindObject:
		for name, v := range source.Object.Attrs {
			if _, err := in.Send(ObjectValue(obj), name+":", []Value{v}); err != nil {
				return Value{}, err
			}
		}
	}
	return ObjectValue(obj), nil
}

// integerContent extracts an int64 from an Integer or an object carrying
// an Integer internal value.
func integerContent(v Value) (int64, bool) {
	if v.Kind == KindInteger {
		return v.Int, true
	}
	if v.Kind == KindObject && v.Object.Internal != nil && v.Object.Internal.Kind == KindInteger {
		return v.Object.Internal.Int, true
	}
	return 0, false
}

// stringContent extracts the text from a String or an object carrying a
// String internal value.
func stringContent(v Value) (string, bool) {
	if v.Kind == KindString {
		return v.Str, true
	}
	if v.Kind == KindObject && v.Object.Internal != nil && v.Object.Internal.Kind == KindString {
		return v.Object.Internal.Str, true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Super sends
// ---------------------------------------------------------------------------

// superSend resolves a message sent to `super`: method lookup skips the
// receiver's own class, and the enclosing self stays the receiver. On a
// lookup miss the remaining ladder phases still apply to the enclosing
// self, minus the user-method phase.
func (in *Interpreter) superSend(selector string, args []Value) (Value, error) {
	frame, err := in.stack.Current()
	if err != nil {
		return Value{}, err
	}
	self := frame.Self()
	if self == nil {
		return Value{}, typeErrorf("super outside of a method context")
	}

	class := in.ClassFor(*self)
	if body := class.FindMethodInParent(selector); body != nil {
		if len(body.Parameters) != len(args) {
			return Value{}, arityErrorf("method %q of class %s takes %d arguments, selector supplies %d",
				selector, class.Name, len(body.Parameters), len(args))
		}
		return in.ExecuteBlock(body, nil, args, self)
	}
	return in.sendValue(*self, selector, args, true)
}

// ---------------------------------------------------------------------------
// The value-receiver ladder: phases 2-10
// ---------------------------------------------------------------------------

// sendValue walks the dispatch precedence ladder for a value receiver.
// The first matching phase wins. skipMethods suppresses the user-method
// phase; it is set when a super lookup already missed.
func (in *Interpreter) sendValue(recv Value, selector string, args []Value, skipMethods bool) (Value, error) {
	// Phase 2: block value… shortcut.
	if recv.Kind == KindBlock && selector == valueSelector(recv.Block.Arity()) {
		return in.ExecuteBlock(recv.Block.Node, recv.Block.Self, args, nil)
	}

	// Phase 3: boolean control messages.
	if recv.IsBool() {
		switch selector {
		case "ifTrue:ifFalse:":
			branch := args[0]
			if recv.IsFalse() {
				branch = args[1]
			}
			return in.invokeValue(branch)
		case "and:":
			if recv.IsFalse() {
				return FalseValue(), nil
			}
			return in.invokeValue(args[0])
		case "or:":
			if recv.IsTrue() {
				return TrueValue(), nil
			}
			return in.invokeValue(args[0])
		}
	}

	// Phase 4: loops.
	if selector == "whileTrue:" && (recv.Kind == KindBlock ||
		(recv.Kind == KindObject && recv.Object.Class.IsSubclassOf(in.blockClass))) {
		for {
			cond, err := in.invokeValue(recv)
			if err != nil {
				return Value{}, err
			}
			if !cond.IsTrue() {
				return NilValue(), nil
			}
			if _, err := in.invokeValue(args[0]); err != nil {
				return Value{}, err
			}
		}
	}
	if selector == "timesRepeat:" && recv.Kind == KindInteger {
		for i := int64(1); i <= recv.Int; i++ {
			if _, err := in.invokeValueWith(args[0], IntegerValue(i)); err != nil {
				return Value{}, err
			}
		}
		return NilValue(), nil
	}

	// Phase 5: direct print for strings.
	if recv.Kind == KindString && selector == "print" {
		in.write(recv.Str)
		return recv, nil
	}

	// Phase 6: user-defined methods on the receiver's class chain.
	if !skipMethods {
		class := in.ClassFor(recv)
		if body := class.FindMethod(selector); body != nil {
			if len(body.Parameters) != len(args) {
				return Value{}, arityErrorf("method %q of class %s takes %d arguments, selector supplies %d",
					selector, class.Name, len(body.Parameters), len(args))
			}
			return in.ExecuteBlock(body, nil, args, &recv)
		}
	}

	// Phase 7: delegation through the internal value.
	if recv.Kind == KindObject && recv.Object.Internal != nil && delegatableSelectors[selector] {
		inner := *recv.Object.Internal
		forwarded := make([]Value, len(args))
		for i, a := range args {
			if a.Kind == KindObject && a.Object.Internal != nil && a.Object.Internal.Kind == inner.Kind {
				forwarded[i] = *a.Object.Internal
			} else {
				forwarded[i] = a
			}
		}
		return in.sendValue(inner, selector, forwarded, false)
	}

	// Phase 8: built-in base methods.
	if result, handled, err := in.baseMethod(recv, selector, args); handled || err != nil {
		return result, err
	}

	// Phase 9: dynamic attributes.
	if result, handled, err := in.attributeMessage(recv, selector, args); handled || err != nil {
		return result, err
	}

	// Phase 10: nothing matched.
	return Value{}, dnuErrorf(recv.Describe(), selector)
}

// valueSelector returns the `value…` selector matching a block arity:
// "value" for 0, "value:" for 1, "value:value:" for 2, and so on.
func valueSelector(arity int) string {
	if arity == 0 {
		return "value"
	}
	return strings.Repeat("value:", arity)
}

// delegatableSelectors may be forwarded from an object to its internal
// value.
var delegatableSelectors = map[string]bool{
	"equalTo:":               true,
	"greaterThan:":           true,
	"plus:":                  true,
	"minus:":                 true,
	"multiplyBy:":            true,
	"divBy:":                 true,
	"asString":               true,
	"asInteger":              true,
	"timesRepeat:":           true,
	"concatenateWith:":       true,
	"startsWith:endsBefore:": true,
	"isNumber":               true,
	"isString":               true,
	"isBlock":                true,
	"isNil":                  true,
	"print":                  true,
}

// ---------------------------------------------------------------------------
// Phase 8 dispatch: per-kind primitives, then generic defaults
// ---------------------------------------------------------------------------

func (in *Interpreter) baseMethod(recv Value, selector string, args []Value) (Value, bool, error) {
	switch recv.Kind {
	case KindInteger:
		if v, handled, err := integerPrimitive(recv, selector, args); handled || err != nil {
			return v, handled, err
		}
	case KindString:
		if v, handled, err := stringPrimitive(recv, selector, args); handled || err != nil {
			return v, handled, err
		}
	case KindBlock:
		if v, handled, err := blockPrimitive(recv, selector); handled || err != nil {
			return v, handled, err
		}
	case KindNil, KindTrue, KindFalse:
		if v, handled, err := constantPrimitive(recv, selector); handled || err != nil {
			return v, handled, err
		}
	}

	switch selector {
	case "identicalTo:":
		return BoolValue(recv.Identical(args[0])), true, nil
	case "equalTo:":
		return BoolValue(recv.Identical(args[0])), true, nil
	case "asString":
		return StringValue(""), true, nil
	case "isNil", "isNumber", "isString", "isBlock":
		return FalseValue(), true, nil
	}
	return Value{}, false, nil
}

// ---------------------------------------------------------------------------
// Phase 9: dynamic attributes
// ---------------------------------------------------------------------------

func (in *Interpreter) attributeMessage(recv Value, selector string, args []Value) (Value, bool, error) {
	// Setter: a single trailing colon, one argument.
	if len(args) == 1 && strings.HasSuffix(selector, ":") && strings.Count(selector, ":") == 1 {
		name := strings.TrimSuffix(selector, ":")
		if name == "" {
			return Value{}, false, nil
		}
		if err := in.checkAttrCollision(recv, name); err != nil {
			return Value{}, false, err
		}
		return in.storeAttr(recv, name, args[0]), true, nil
	}

	// Getter: no colons, no arguments.
	if len(args) == 0 && !strings.Contains(selector, ":") {
		if err := in.checkAttrCollision(recv, selector); err != nil {
			return Value{}, false, err
		}
		if v, ok := in.lookupAttr(recv, selector); ok {
			return v, true, nil
		}
	}
	return Value{}, false, nil
}

// lookupAttr finds a dynamic attribute on any value kind.
func (in *Interpreter) lookupAttr(recv Value, name string) (Value, bool) {
	switch recv.Kind {
	case KindNil, KindTrue, KindFalse:
		v, ok := in.singletonAttrs[recv.Kind][name]
		return v, ok
	case KindObject:
		v, ok := recv.Object.Attrs[name]
		return v, ok
	case KindBlock:
		v, ok := recv.Block.attrs[name]
		return v, ok
	default:
		v, ok := recv.attrs[name]
		return v, ok
	}
}

// storeAttr assigns a dynamic attribute and returns the receiver. For
// Integer and String the map is attached to the returned Value, so only
// sends chained off the setter result can observe it.
func (in *Interpreter) storeAttr(recv Value, name string, v Value) Value {
	switch recv.Kind {
	case KindNil, KindTrue, KindFalse:
		in.singletonAttrs[recv.Kind][name] = v
	case KindObject:
		recv.Object.Attrs[name] = v
	case KindBlock:
		if recv.Block.attrs == nil {
			recv.Block.attrs = make(map[string]Value)
		}
		recv.Block.attrs[name] = v
	default:
		if recv.attrs == nil {
			recv.attrs = make(map[string]Value)
		}
		recv.attrs[name] = v
	}
	return recv
}

// checkAttrCollision rejects an attribute name that clashes with a built-in
// method selector on the receiver's kind, or shadows a method declared on
// the receiver's class chain. Both forms of the name count: an attribute
// `plus` collides with the built-in `plus:` and vice versa.
func (in *Interpreter) checkAttrCollision(recv Value, name string) error {
	set := builtinSelectorsFor(recv)
	if set[name] || set[name+":"] {
		return typeErrorf("attribute %q of %s collides with a built-in method",
			name, recv.Describe())
	}
	class := in.ClassFor(recv)
	if class.FindMethod(name) != nil || class.FindMethod(name+":") != nil {
		return typeErrorf("attribute %q of %s shadows a method of class %s",
			name, recv.Describe(), class.Name)
	}
	return nil
}

// baseSelectors are understood by every value kind.
var baseSelectors = []string{
	"identicalTo:", "equalTo:", "asString", "isNil", "isNumber", "isString", "isBlock",
}

func selectorSet(extra ...string) map[string]bool {
	set := make(map[string]bool, len(baseSelectors)+len(extra))
	for _, s := range baseSelectors {
		set[s] = true
	}
	for _, s := range extra {
		set[s] = true
	}
	return set
}

var (
	nilSelectors     = selectorSet()
	booleanSelectors = selectorSet("not", "and:", "or:", "ifTrue:ifFalse:")
	integerSelectors = selectorSet("asInteger", "greaterThan:", "plus:", "minus:",
		"multiplyBy:", "divBy:", "timesRepeat:")
	stringSelectors = selectorSet("asInteger", "concatenateWith:",
		"startsWith:endsBefore:", "print")
	blockSelectors  = selectorSet("value", "whileTrue:")
	objectSelectors = selectorSet()
)

func builtinSelectorsFor(recv Value) map[string]bool {
	switch recv.Kind {
	case KindNil:
		return nilSelectors
	case KindTrue, KindFalse:
		return booleanSelectors
	case KindInteger:
		return integerSelectors
	case KindString:
		return stringSelectors
	case KindBlock:
		return blockSelectors
	default:
		if recv.Kind == KindObject && recv.Object.Internal != nil {
			return delegatableSelectors
		}
		return objectSelectors
	}
}

// ---------------------------------------------------------------------------
// The value-like invocation helper
// ---------------------------------------------------------------------------

// invokeValue evaluates a target as if by `value`: a zero-arity block
// executes directly, anything else receives the message. A target that
// does not understand `value` is a type error at the invoking site.
func (in *Interpreter) invokeValue(target Value) (Value, error) {
	if target.Kind == KindBlock && target.Block.Arity() == 0 {
		return in.ExecuteBlock(target.Block.Node, target.Block.Self, nil, nil)
	}
	result, err := in.sendValue(target, "value", nil, false)
	if err != nil && IsKind(err, ErrDoesNotUnderstand) {
		return Value{}, typeErrorf("%s does not respond to value", target.Describe())
	}
	return result, err
}

// invokeValueWith evaluates a target as if by `value:` with one argument.
func (in *Interpreter) invokeValueWith(target Value, arg Value) (Value, error) {
	if target.Kind == KindBlock && target.Block.Arity() == 1 {
		return in.ExecuteBlock(target.Block.Node, target.Block.Self, []Value{arg}, nil)
	}
	result, err := in.sendValue(target, "value:", []Value{arg}, false)
	if err != nil && IsKind(err, ErrDoesNotUnderstand) {
		return Value{}, typeErrorf("%s does not respond to value:", target.Describe())
	}
	return result, err
}
