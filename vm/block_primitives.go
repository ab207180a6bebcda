package vm

// blockPrimitive implements the built-in methods of Block receivers. The
// value… family and whileTrue: live earlier in the ladder; only the
// classification message remains.
func blockPrimitive(recv Value, selector string) (Value, bool, error) {
	if selector == "isBlock" {
		return TrueValue(), true, nil
	}
	return Value{}, false, nil
}
