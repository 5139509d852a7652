package layering

import "reflect"

// MergeLayers deep-merges values ordered from strongest to weakest. Stronger
// layers win on scalars and slices; maps and structs are merged field by field
// so a weaker layer still fills in what a stronger one leaves unset. Inputs
// are never mutated and the result shares no maps or slices with them.
func MergeLayers[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}

	merged := deepCopy(reflect.ValueOf(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		merged = merge(reflect.ValueOf(layers[i]), merged)
	}
	if !merged.IsValid() {
		return zero
	}

	target := reflect.TypeOf((*T)(nil)).Elem()
	if merged.Type() != target {
		out := reflect.New(target).Elem()
		out.Set(merged.Convert(target))
		return out.Interface().(T)
	}
	return merged.Interface().(T)
}

// MergeBindings merges binding frames ordered from strongest to weakest.
// Nested map[string]any values are merged recursively.
func MergeBindings(frames ...map[string]any) map[string]any {
	merged := MergeLayers(frames...)
	if merged == nil {
		return map[string]any{}
	}
	return merged
}

func merge(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return deepCopy(weak)
	}
	switch strong.Kind() {
	case reflect.Pointer:
		return mergePointer(strong, weak)
	case reflect.Interface:
		return mergeInterface(strong, weak)
	case reflect.Struct:
		return mergeStruct(strong, weak)
	case reflect.Map:
		return mergeMap(strong, weak)
	case reflect.Array:
		return mergeArray(strong, weak)
	case reflect.Slice:
		if strong.IsNil() {
			return deepCopy(weak)
		}
		return deepCopy(strong)
	default:
		return deepCopy(strong)
	}
}

func mergePointer(strong, weak reflect.Value) reflect.Value {
	if strong.IsNil() {
		return deepCopy(weak)
	}
	var weakElem reflect.Value
	if weak.IsValid() && weak.Kind() == reflect.Pointer && !weak.IsNil() {
		weakElem = weak.Elem()
	}
	out := reflect.New(strong.Type().Elem())
	out.Elem().Set(merge(strong.Elem(), weakElem))
	return out
}

func mergeInterface(strong, weak reflect.Value) reflect.Value {
	if strong.IsNil() {
		return deepCopy(weak)
	}
	var weakElem reflect.Value
	if weak.IsValid() && weak.Kind() == reflect.Interface && !weak.IsNil() {
		weakElem = weak.Elem()
	}
	inner := strong.Elem()
	if weakElem.IsValid() && weakElem.Type() != inner.Type() {
		// a map in one layer and a scalar in another: the stronger one replaces
		weakElem = reflect.Value{}
	}
	return merge(inner, weakElem).Convert(strong.Type())
}

func mergeStruct(strong, weak reflect.Value) reflect.Value {
	out := reflect.New(strong.Type()).Elem()
	sameType := weak.IsValid() && weak.Type() == strong.Type()
	for i := 0; i < strong.NumField(); i++ {
		field := out.Field(i)
		if !field.CanSet() {
			continue
		}
		var weakField reflect.Value
		if sameType {
			weakField = weak.Field(i)
		}
		field.Set(merge(strong.Field(i), weakField))
	}
	return out
}

func mergeMap(strong, weak reflect.Value) reflect.Value {
	if strong.IsNil() {
		return deepCopy(weak)
	}
	out := reflect.MakeMapWithSize(strong.Type(), strong.Len())
	if weak.IsValid() && weak.Kind() == reflect.Map && !weak.IsNil() {
		for iter := weak.MapRange(); iter.Next(); {
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
	}
	for iter := strong.MapRange(); iter.Next(); {
		key, value := iter.Key(), iter.Value()
		// a key present in the stronger map wins even when its value is nil
		if existing := out.MapIndex(key); existing.IsValid() && !isNil(value) {
			out.SetMapIndex(key, merge(value, existing))
			continue
		}
		out.SetMapIndex(key, deepCopy(value))
	}
	return out
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}

func mergeArray(strong, weak reflect.Value) reflect.Value {
	out := reflect.New(strong.Type()).Elem()
	for i := 0; i < strong.Len(); i++ {
		var weakElem reflect.Value
		if weak.IsValid() && weak.Kind() == reflect.Array && weak.Len() > i {
			weakElem = weak.Index(i)
		}
		out.Index(i).Set(merge(strong.Index(i), weakElem))
	}
	return out
}

func deepCopy(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(deepCopy(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		return deepCopy(v.Elem()).Convert(v.Type())
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if field := out.Field(i); field.CanSet() {
				field.Set(deepCopy(v.Field(i)))
			}
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		for iter := v.MapRange(); iter.Next(); {
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
