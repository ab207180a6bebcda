package vm

// constantPrimitive implements the built-in methods of the three constant
// singletons. The short-circuiting control messages live in phase 3 of the
// ladder; what remains is negation, conversion, and classification.
func constantPrimitive(recv Value, selector string) (Value, bool, error) {
	switch selector {
	case "asString":
		switch recv.Kind {
		case KindNil:
			return StringValue("nil"), true, nil
		case KindTrue:
			return StringValue("true"), true, nil
		case KindFalse:
			return StringValue("false"), true, nil
		}

	case "not":
		switch recv.Kind {
		case KindTrue:
			return FalseValue(), true, nil
		case KindFalse:
			return TrueValue(), true, nil
		}

	case "isNil":
		return BoolValue(recv.Kind == KindNil), true, nil
	}
	return Value{}, false, nil
}
