package vm

import (
	"strconv"
)

// stringPrimitive implements the built-in methods of String receivers.
// The print intrinsic is not here: it needs the output stream and is
// handled earlier in the ladder.
func stringPrimitive(recv Value, selector string, args []Value) (Value, bool, error) {
	switch selector {
	case "asString":
		return recv, true, nil

	case "isString":
		return TrueValue(), true, nil

	case "equalTo:":
		if s, ok := stringContent(args[0]); ok {
			return BoolValue(s == recv.Str), true, nil
		}
		return FalseValue(), true, nil

	case "asInteger":
		n, err := strconv.ParseInt(recv.Str, 10, 64)
		if err != nil {
			return NilValue(), true, nil
		}
		return IntegerValue(n), true, nil

	case "concatenateWith:":
		if args[0].Kind != KindString {
			return NilValue(), true, nil
		}
		return StringValue(recv.Str + args[0].Str), true, nil

	case "startsWith:endsBefore:":
		return substring(recv.Str, args[0], args[1]), true, nil
	}
	return Value{}, false, nil
}

// substring implements `startsWith:endsBefore:` with 1-based, UTF-8-aware
// code-point indices. Non-Integer or non-positive bounds yield Nil; an end
// at or before the start yields the empty string. Bounds past the end of
// the text are clamped.
func substring(s string, start, end Value) Value {
	if start.Kind != KindInteger || end.Kind != KindInteger {
		return NilValue()
	}
	if start.Int < 1 || end.Int < 1 {
		return NilValue()
	}
	if end.Int <= start.Int {
		return StringValue("")
	}

	runes := []rune(s)
	from := start.Int - 1
	to := end.Int - 1
	if from >= int64(len(runes)) {
		return StringValue("")
	}
	if to > int64(len(runes)) {
		to = int64(len(runes))
	}
	return StringValue(string(runes[from:to]))
}
