package vm

import (
	"sync"

	"github.com/chazu/sol25/pkg/ast"
)

// Names of the seven built-in classes.
const (
	ClassObject  = "Object"
	ClassNil     = "Nil"
	ClassTrue    = "True"
	ClassFalse   = "False"
	ClassInteger = "Integer"
	ClassString  = "String"
	ClassBlock   = "Block"
)

// Class is a class descriptor: a name, an optional parent, and a
// selector-keyed method table. Built-in classes have empty method tables;
// all their behavior lives in the dispatcher.
type Class struct {
	Name       string
	Superclass *Class
	Methods    map[string]*ast.Block
}

// FindMethod looks up a selector on this class, then its ancestors.
func (c *Class) FindMethod(selector string) *ast.Block {
	for current := c; current != nil; current = current.Superclass {
		if m, ok := current.Methods[selector]; ok {
			return m
		}
	}
	return nil
}

// FindMethodInParent looks up a selector on the ancestors only, skipping
// this class. This is the `super` lookup.
func (c *Class) FindMethodInParent(selector string) *ast.Block {
	if c.Superclass == nil {
		return nil
	}
	return c.Superclass.FindMethod(selector)
}

// Defines reports whether this class itself declares the selector.
func (c *Class) Defines(selector string) bool {
	_, ok := c.Methods[selector]
	return ok
}

// IsSubclassOf reports whether c is other or a descendant of other.
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		if current == other {
			return true
		}
	}
	return false
}

// String implements the Stringer interface.
func (c *Class) String() string {
	return c.Name
}

// ---------------------------------------------------------------------------
// ClassTable: the class registry
// ---------------------------------------------------------------------------

// ClassTable manages registered classes by name. Lookups are case-sensitive.
// It is populated once while the program loads and immutable afterwards.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClassTable creates a class table pre-registered with the seven
// built-ins: Object as root, every other built-in with Object as parent.
func NewClassTable() *ClassTable {
	ct := &ClassTable{classes: make(map[string]*Class)}

	object := &Class{Name: ClassObject, Methods: make(map[string]*ast.Block)}
	ct.classes[ClassObject] = object
	for _, name := range []string{ClassNil, ClassTrue, ClassFalse, ClassInteger, ClassString, ClassBlock} {
		ct.classes[name] = &Class{
			Name:       name,
			Superclass: object,
			Methods:    make(map[string]*ast.Block),
		}
	}
	return ct
}

// Lookup finds a class by name, or nil.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// Has reports whether a class with this name is registered.
func (ct *ClassTable) Has(name string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.classes[name]
	return ok
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}

// All returns every registered class.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make([]*Class, 0, len(ct.classes))
	for _, c := range ct.classes {
		result = append(result, c)
	}
	return result
}

// Define registers an empty class with no parent yet. It fails when the name
// is taken (built-ins included) or does not match the class-name pattern.
// The parent is attached later, so classes may be declared in any order.
func (ct *ClassTable) Define(name string) (*Class, error) {
	if !ast.NamePattern.MatchString(name) {
		return nil, typeErrorf("class name %q does not match %s", name, ast.NamePattern)
	}

	ct.mu.Lock()
	defer ct.mu.Unlock()

	if _, ok := ct.classes[name]; ok {
		return nil, typeErrorf("class %s is already defined", name)
	}
	c := &Class{Name: name, Methods: make(map[string]*ast.Block)}
	ct.classes[name] = c
	return c, nil
}

// AddClass registers a class whose parent must already exist, then installs
// its methods. This is the single-shot registration entry point.
func (ct *ClassTable) AddClass(name, parentName string, methods map[string]*ast.Block) (*Class, error) {
	parent := ct.Lookup(parentName)
	if parent == nil {
		return nil, typeErrorf("class %s: unknown parent %s", name, parentName)
	}
	c, err := ct.Define(name)
	if err != nil {
		return nil, err
	}
	c.Superclass = parent
	for selector, body := range methods {
		if err := ct.AddMethod(c, selector, body); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddMethod installs a method on a class. Duplicate selectors within one
// class are rejected; overriding an ancestor method is allowed.
func (ct *ClassTable) AddMethod(c *Class, selector string, body *ast.Block) error {
	if c.Defines(selector) {
		return typeErrorf("class %s: duplicate method %q", c.Name, selector)
	}
	c.Methods[selector] = body
	return nil
}
