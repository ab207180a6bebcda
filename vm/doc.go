// Package vm implements the SOL25 interpreter core.
//
// This package contains:
//   - Tagged-union value representation with singleton constants
//   - Class registry and inheritance-chain method lookup
//   - Frame and call-stack machinery for block execution
//   - The message dispatch precedence ladder
//   - Primitive method implementations per value kind
package vm
