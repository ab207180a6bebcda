// Package ast defines types for the SOL25 program AST supplied as an XML
// document, along with structural validation of the document shape.
package ast

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// ErrMalformed is wrapped by every structural validation failure. The driver
// maps any error carrying it to the type-error exit code.
var ErrMalformed = errors.New("malformed program")

// NamePattern is the shape every class name must match.
var NamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

// Literal class constants as they appear in the `class` attribute.
const (
	LiteralNil     = "Nil"
	LiteralTrue    = "True"
	LiteralFalse   = "False"
	LiteralInteger = "Integer"
	LiteralString  = "String"
	LiteralClass   = "class"
)

// Program is the root of a SOL25 AST document.
type Program struct {
	XMLName  xml.Name `xml:"program"`
	Language string   `xml:"language,attr"`
	Classes  []*Class `xml:"class"`
}

// Class represents a class definition.
type Class struct {
	Name    string    `xml:"name,attr"`
	Parent  string    `xml:"parent,attr"`
	Methods []*Method `xml:"method"`
}

// Method represents a method definition. A valid method contains exactly one
// block; the slice exists so validation can reject surplus children.
type Method struct {
	Selector string   `xml:"selector,attr"`
	Blocks   []*Block `xml:"block"`
}

// Body returns the method's single block. Valid only after validation.
func (m *Method) Body() *Block {
	return m.Blocks[0]
}

// Block represents a block: ordered parameters and ordered assignments.
// After validation both slices are sorted by their order attributes.
type Block struct {
	Arity      int          `xml:"arity,attr"`
	Parameters []*Parameter `xml:"parameter"`
	Assigns    []*Assign    `xml:"assign"`
}

// Parameter is a named block parameter with a 1-based declaration order.
type Parameter struct {
	Name  string `xml:"name,attr"`
	Order int    `xml:"order,attr"`
}

// Assign is a single statement: `var := expr`. A valid assign contains
// exactly one var and one expr.
type Assign struct {
	Order int     `xml:"order,attr"`
	Vars  []*Var  `xml:"var"`
	Exprs []*Expr `xml:"expr"`
}

// Target returns the assigned variable. Valid only after validation.
func (a *Assign) Target() *Var {
	return a.Vars[0]
}

// Expr returns the assigned expression. Valid only after validation.
func (a *Assign) Expr() *Expr {
	return a.Exprs[0]
}

// Var is a variable reference.
type Var struct {
	Name string `xml:"name,attr"`
}

// Expr wraps exactly one of: literal, var, send, block.
type Expr struct {
	Literals []*Literal `xml:"literal"`
	Vars     []*Var     `xml:"var"`
	Sends    []*Send    `xml:"send"`
	Blocks   []*Block   `xml:"block"`
}

// Literal returns the literal child, or nil.
func (e *Expr) Literal() *Literal {
	if len(e.Literals) == 1 {
		return e.Literals[0]
	}
	return nil
}

// Var returns the variable child, or nil.
func (e *Expr) Var() *Var {
	if len(e.Vars) == 1 {
		return e.Vars[0]
	}
	return nil
}

// Send returns the send child, or nil.
func (e *Expr) Send() *Send {
	if len(e.Sends) == 1 {
		return e.Sends[0]
	}
	return nil
}

// Block returns the block-literal child, or nil.
func (e *Expr) Block() *Block {
	if len(e.Blocks) == 1 {
		return e.Blocks[0]
	}
	return nil
}

// Literal is a literal value. For class literals Value names the class.
type Literal struct {
	Class string `xml:"class,attr"`
	Value string `xml:"value,attr"`
}

// Send is a message send: one receiver expression plus ordered arguments.
type Send struct {
	Selector string  `xml:"selector,attr"`
	Exprs    []*Expr `xml:"expr"`
	Args     []*Arg  `xml:"arg"`
}

// Receiver returns the receiver expression. Valid only after validation.
func (s *Send) Receiver() *Expr {
	return s.Exprs[0]
}

// Arg wraps one argument expression with its 1-based order.
type Arg struct {
	Order int     `xml:"order,attr"`
	Exprs []*Expr `xml:"expr"`
}

// Expr returns the argument expression. Valid only after validation.
func (a *Arg) Expr() *Expr {
	return a.Exprs[0]
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Decode reads an XML AST document and validates its structure.
func Decode(r io.Reader) (*Program, error) {
	var p Program
	if err := xml.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ---------------------------------------------------------------------------
// Structural validation
// ---------------------------------------------------------------------------

// Validate checks the document against the AST contract and normalizes it:
// parameters, assignments and send arguments end up sorted by their order
// attributes. Every violation wraps ErrMalformed.
func (p *Program) Validate() error {
	if !strings.EqualFold(p.Language, "SOL25") {
		return malformedf("program language is %q, want SOL25", p.Language)
	}
	for _, c := range p.Classes {
		if err := c.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Class) validate() error {
	if !NamePattern.MatchString(c.Name) {
		return malformedf("class name %q does not match %s", c.Name, NamePattern)
	}
	if !NamePattern.MatchString(c.Parent) {
		return malformedf("class %s: parent name %q does not match %s", c.Name, c.Parent, NamePattern)
	}
	for _, m := range c.Methods {
		if err := m.validate(c.Name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Method) validate(className string) error {
	if m.Selector == "" {
		return malformedf("class %s: method without selector", className)
	}
	if len(m.Blocks) != 1 {
		return malformedf("class %s: method %q has %d blocks, want exactly 1",
			className, m.Selector, len(m.Blocks))
	}
	return m.Blocks[0].validate()
}

func (b *Block) validate() error {
	sort.Slice(b.Parameters, func(i, j int) bool {
		return b.Parameters[i].Order < b.Parameters[j].Order
	})
	for i, param := range b.Parameters {
		if param.Name == "" {
			return malformedf("block parameter %d has no name", i+1)
		}
		if param.Order != i+1 {
			return malformedf("block parameter %q has order %d, want %d",
				param.Name, param.Order, i+1)
		}
	}
	if b.Arity != len(b.Parameters) {
		return malformedf("block declares arity %d but has %d parameters",
			b.Arity, len(b.Parameters))
	}

	sort.Slice(b.Assigns, func(i, j int) bool {
		return b.Assigns[i].Order < b.Assigns[j].Order
	})
	seen := make(map[int]bool, len(b.Assigns))
	for _, a := range b.Assigns {
		if a.Order < 1 {
			return malformedf("assign order %d is not positive", a.Order)
		}
		if seen[a.Order] {
			return malformedf("duplicate assign order %d", a.Order)
		}
		seen[a.Order] = true
		if err := a.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assign) validate() error {
	if len(a.Vars) != 1 {
		return malformedf("assign %d has %d vars, want exactly 1", a.Order, len(a.Vars))
	}
	if a.Vars[0].Name == "" {
		return malformedf("assign %d: var without name", a.Order)
	}
	if len(a.Exprs) != 1 {
		return malformedf("assign %d has %d exprs, want exactly 1", a.Order, len(a.Exprs))
	}
	return a.Exprs[0].validate()
}

func (e *Expr) validate() error {
	n := len(e.Literals) + len(e.Vars) + len(e.Sends) + len(e.Blocks)
	if n != 1 {
		return malformedf("expr has %d children, want exactly 1", n)
	}
	switch {
	case len(e.Literals) == 1:
		return e.Literals[0].validate()
	case len(e.Vars) == 1:
		if e.Vars[0].Name == "" {
			return malformedf("var without name")
		}
	case len(e.Sends) == 1:
		return e.Sends[0].validate()
	case len(e.Blocks) == 1:
		return e.Blocks[0].validate()
	}
	return nil
}

func (l *Literal) validate() error {
	switch l.Class {
	case LiteralNil, LiteralTrue, LiteralFalse, LiteralInteger, LiteralString:
		return nil
	case LiteralClass:
		if !NamePattern.MatchString(l.Value) {
			return malformedf("class literal value %q does not match %s", l.Value, NamePattern)
		}
		return nil
	default:
		return malformedf("unknown literal class %q", l.Class)
	}
}

func (s *Send) validate() error {
	if s.Selector == "" {
		return malformedf("send without selector")
	}
	if len(s.Exprs) != 1 {
		return malformedf("send %q has %d receiver exprs, want exactly 1",
			s.Selector, len(s.Exprs))
	}
	if err := s.Exprs[0].validate(); err != nil {
		return err
	}

	sort.Slice(s.Args, func(i, j int) bool { return s.Args[i].Order < s.Args[j].Order })
	seen := make(map[int]bool, len(s.Args))
	for _, arg := range s.Args {
		if arg.Order < 1 {
			return malformedf("send %q: arg order %d is not positive", s.Selector, arg.Order)
		}
		if seen[arg.Order] {
			return malformedf("send %q: duplicate arg order %d", s.Selector, arg.Order)
		}
		seen[arg.Order] = true
		if len(arg.Exprs) != 1 {
			return malformedf("send %q: arg %d has %d exprs, want exactly 1",
				s.Selector, arg.Order, len(arg.Exprs))
		}
		if err := arg.Exprs[0].validate(); err != nil {
			return err
		}
	}
	return nil
}

func malformedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
