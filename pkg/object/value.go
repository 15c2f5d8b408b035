package object

import (
	"bytes"
	"fmt"
	"math"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// toValue converts a Go value into the protobuf value of a scalar field.
// Integers are range checked, enums accept their number or their name.
func toValue(fd protoreflect.FieldDescriptor, v any) (protoreflect.Value, error) {
	mismatch := func() (protoreflect.Value, error) {
		return protoreflect.Value{}, fmt.Errorf("%w: cannot use %T as %s", ErrTypeMismatch, v, fd.Kind())
	}

	switch fd.Kind() {
	case protoreflect.BoolKind:
		if b, ok := v.(bool); ok {
			return protoreflect.ValueOfBool(b), nil
		}

	case protoreflect.EnumKind:
		values := fd.Enum().Values()
		var n protoreflect.EnumNumber
		switch x := v.(type) {
		case string:
			ev := values.ByName(protoreflect.Name(x))
			if ev == nil {
				return protoreflect.Value{}, fmt.Errorf("%w: %q is not a value of %s", ErrTypeMismatch, x, fd.Enum().Name())
			}
			return protoreflect.ValueOfEnum(ev.Number()), nil
		case protoreflect.EnumNumber:
			n = x
		default:
			i, ok := asInt64(v)
			if !ok || i < math.MinInt32 || i > math.MaxInt32 {
				return mismatch()
			}
			n = protoreflect.EnumNumber(i)
		}
		if values.ByNumber(n) == nil {
			return protoreflect.Value{}, fmt.Errorf("%w: %d is not a value of %s", ErrTypeMismatch, n, fd.Enum().Name())
		}
		return protoreflect.ValueOfEnum(n), nil

	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if i, ok := asInt64(v); ok && i >= math.MinInt32 && i <= math.MaxInt32 {
			return protoreflect.ValueOfInt32(int32(i)), nil
		}

	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if i, ok := asInt64(v); ok {
			return protoreflect.ValueOfInt64(i), nil
		}

	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if u, ok := asUint64(v); ok && u <= math.MaxUint32 {
			return protoreflect.ValueOfUint32(uint32(u)), nil
		}

	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if u, ok := asUint64(v); ok {
			return protoreflect.ValueOfUint64(u), nil
		}

	case protoreflect.FloatKind:
		switch x := v.(type) {
		case float32:
			return protoreflect.ValueOfFloat32(x), nil
		case float64:
			return protoreflect.ValueOfFloat32(float32(x)), nil
		}

	case protoreflect.DoubleKind:
		switch x := v.(type) {
		case float64:
			return protoreflect.ValueOfFloat64(x), nil
		case float32:
			return protoreflect.ValueOfFloat64(float64(x)), nil
		}

	case protoreflect.StringKind:
		if s, ok := v.(string); ok {
			return protoreflect.ValueOfString(s), nil
		}

	case protoreflect.BytesKind:
		switch x := v.(type) {
		case []byte:
			return protoreflect.ValueOfBytes(append([]byte(nil), x...)), nil
		case string:
			return protoreflect.ValueOfBytes([]byte(x)), nil
		}
	}
	return mismatch()
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return int64(x), true
		}
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x), true
		}
	}
	return 0, false
}

func asUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	default:
		if i, ok := asInt64(v); ok && i >= 0 {
			return uint64(i), true
		}
	}
	return 0, false
}

// fromValue is the inverse of toValue. Enums come back as int32.
func fromValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.EnumKind:
		return int32(v.Enum())
	case protoreflect.BytesKind:
		return append([]byte(nil), v.Bytes()...)
	default:
		return v.Interface()
	}
}

func valuesEqual(fd protoreflect.FieldDescriptor, a, b protoreflect.Value) bool {
	switch fd.Kind() {
	case protoreflect.BytesKind:
		return bytes.Equal(a.Bytes(), b.Bytes())
	case protoreflect.EnumKind:
		return a.Enum() == b.Enum()
	default:
		return a.Interface() == b.Interface()
	}
}
