package vm

import (
	"strconv"
	"strings"

	"github.com/chazu/sol25/pkg/ast"
)

// Kind tags the variant a Value holds. The set is closed: every runtime
// value is exactly one of these seven.
type Kind int

const (
	KindNil Kind = iota
	KindTrue
	KindFalse
	KindInteger
	KindString
	KindBlock
	KindObject
)

// String returns the class name corresponding to the kind.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "Nil"
	case KindTrue:
		return "True"
	case KindFalse:
		return "False"
	case KindInteger:
		return "Integer"
	case KindString:
		return "String"
	case KindBlock:
		return "Block"
	case KindObject:
		return "Object"
	default:
		return "?"
	}
}

// Value is a tagged union over the closed SOL25 variant set.
//
// Nil, True and False are singletons: their identity is the tag itself, so
// any two Values with the same constant kind are the same value. Integer and
// String carry their payload by value; Block and Object are references.
//
// The attrs map exists only for Integer and String receivers that have had
// a dynamic attribute set on them; it is shared between copies of the Value
// so a chained send observes the write. Blocks and Objects keep their
// attributes on the referenced structure, and the three singletons keep
// theirs in interpreter-wide maps.
type Value struct {
	Kind   Kind
	Int    int64
	Str    string
	Block  *BlockValue
	Object *Object

	attrs map[string]Value
}

// BlockValue is a block at runtime: the literal's AST node plus the `self`
// captured when the literal was evaluated. Each evaluation of a block
// literal yields a distinct BlockValue.
type BlockValue struct {
	Node *ast.Block
	Self *Value

	attrs map[string]Value
}

// Arity returns the block's parameter count.
func (b *BlockValue) Arity() int {
	return len(b.Node.Parameters)
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// NilValue returns the nil singleton.
func NilValue() Value {
	return Value{Kind: KindNil}
}

// TrueValue returns the true singleton.
func TrueValue() Value {
	return Value{Kind: KindTrue}
}

// FalseValue returns the false singleton.
func FalseValue() Value {
	return Value{Kind: KindFalse}
}

// BoolValue returns the singleton for a Go bool.
func BoolValue(b bool) Value {
	if b {
		return TrueValue()
	}
	return FalseValue()
}

// IntegerValue creates an Integer value.
func IntegerValue(n int64) Value {
	return Value{Kind: KindInteger, Int: n}
}

// StringValue creates a String value.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// BlockVal wraps a BlockValue.
func BlockVal(b *BlockValue) Value {
	return Value{Kind: KindBlock, Block: b}
}

// ObjectValue wraps a user object.
func ObjectValue(o *Object) Value {
	return Value{Kind: KindObject, Object: o}
}

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

// IsNil reports whether v is the nil singleton.
func (v Value) IsNil() bool { return v.Kind == KindNil }

// IsTrue reports whether v is the true singleton.
func (v Value) IsTrue() bool { return v.Kind == KindTrue }

// IsFalse reports whether v is the false singleton.
func (v Value) IsFalse() bool { return v.Kind == KindFalse }

// IsBool reports whether v is true or false.
func (v Value) IsBool() bool { return v.Kind == KindTrue || v.Kind == KindFalse }

// IsInteger reports whether v is an Integer.
func (v Value) IsInteger() bool { return v.Kind == KindInteger }

// IsString reports whether v is a String.
func (v Value) IsString() bool { return v.Kind == KindString }

// IsBlock reports whether v is a Block.
func (v Value) IsBlock() bool { return v.Kind == KindBlock }

// IsObject reports whether v is a user object.
func (v Value) IsObject() bool { return v.Kind == KindObject }

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

// Identical implements `identicalTo:`. The three singletons compare by tag,
// Integer and String by payload, Block and Object by reference.
func (v Value) Identical(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindInteger:
		return v.Int == other.Int
	case KindString:
		return v.Str == other.Str
	case KindBlock:
		return v.Block == other.Block
	case KindObject:
		return v.Object == other.Object
	default:
		return true
	}
}

// Describe returns a short human-readable tag for error messages.
func (v Value) Describe() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	case KindInteger:
		return "Integer(" + strconv.FormatInt(v.Int, 10) + ")"
	case KindString:
		return "String(" + strconv.Quote(v.Str) + ")"
	case KindBlock:
		return "a Block"
	case KindObject:
		if v.Object != nil && v.Object.Class != nil {
			name := v.Object.Class.Name
			if name != "" && strings.ContainsRune("AEIOU", rune(name[0])) {
				return "an " + name
			}
			return "a " + name
		}
		return "an Object"
	default:
		return "?"
	}
}
