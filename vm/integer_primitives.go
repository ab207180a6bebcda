package vm

import (
	"math"
	"strconv"
)

// integerPrimitive implements the built-in methods of Integer receivers.
// Arithmetic operands must be Integers. The dispatcher unwraps delegating
// object arguments only for messages forwarded from a delegating receiver;
// an object argument sent directly to an Integer is not unwrapped.
func integerPrimitive(recv Value, selector string, args []Value) (Value, bool, error) {
	switch selector {
	case "asString":
		return StringValue(strconv.FormatInt(recv.Int, 10)), true, nil

	case "asInteger":
		return recv, true, nil

	case "isNumber":
		return TrueValue(), true, nil

	case "equalTo:":
		arg := args[0]
		return BoolValue(arg.Kind == KindInteger && arg.Int == recv.Int), true, nil

	case "greaterThan:":
		n, err := integerOperand(selector, args[0])
		if err != nil {
			return Value{}, false, err
		}
		return BoolValue(recv.Int > n), true, nil

	case "plus:":
		n, err := integerOperand(selector, args[0])
		if err != nil {
			return Value{}, false, err
		}
		return IntegerValue(recv.Int + n), true, nil

	case "minus:":
		n, err := integerOperand(selector, args[0])
		if err != nil {
			return Value{}, false, err
		}
		return IntegerValue(recv.Int - n), true, nil

	case "multiplyBy:":
		n, err := integerOperand(selector, args[0])
		if err != nil {
			return Value{}, false, err
		}
		return IntegerValue(recv.Int * n), true, nil

	case "divBy:":
		n, err := integerOperand(selector, args[0])
		if err != nil {
			return Value{}, false, err
		}
		if n == 0 {
			return Value{}, false, valueErrorf("division by zero")
		}
		if recv.Int == math.MinInt64 && n == -1 {
			return Value{}, false, valueErrorf("integer overflow in %d divBy: %d", recv.Int, n)
		}
		return IntegerValue(recv.Int / n), true, nil
	}
	return Value{}, false, nil
}

// integerOperand requires an Integer argument for an arithmetic message.
func integerOperand(selector string, arg Value) (int64, error) {
	if arg.Kind != KindInteger {
		return 0, valueErrorf("%s requires an Integer argument, got %s", selector, arg.Describe())
	}
	return arg.Int, nil
}
