package vm

import (
	"strings"

	"github.com/google/uuid"
)

// Object is a heap-allocated instance of a user-defined class.
//
// Internal models the hidden `__internal_value` attribute: a user subclass
// of Integer, String, or Block carries the primitive it behaves as, and the
// dispatcher forwards delegatable messages to it. It is a typed field rather
// than an Attrs entry so the attribute map never has to reserve a key.
type Object struct {
	ID       string
	Class    *Class
	Attrs    map[string]Value
	Internal *Value
}

// newObject allocates an instance of the given class with an empty
// attribute map and a fresh ID.
func newObject(class *Class) *Object {
	return &Object{
		ID:    generateObjectID(class.Name),
		Class: class,
		Attrs: make(map[string]Value),
	}
}

// SetInternal installs the object's internal value.
func (o *Object) SetInternal(v Value) {
	o.Internal = &v
}

// ClassName returns the name of the object's class, or "?" when detached.
func (o *Object) ClassName() string {
	if o.Class == nil {
		return "?"
	}
	return o.Class.Name
}

// generateObjectID creates a unique instance ID for the given class name.
func generateObjectID(className string) string {
	return strings.ToLower(className) + "_" + uuid.New().String()
}
