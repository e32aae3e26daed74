package workflow

import (
	"context"
	"reflect"
)

// Condition decides which branch of a conditional step runs. Evaluation
// receives the execution context so conditions can inspect upstream data.
type Condition interface {
	Evaluate(ctx context.Context, c *Context) (bool, error)
}

// ConditionFunc adapts a plain function to the Condition interface.
type ConditionFunc func(ctx context.Context, c *Context) (bool, error)

func (f ConditionFunc) Evaluate(ctx context.Context, c *Context) (bool, error) {
	return f(ctx, c)
}

var _ Condition = ConditionFunc(nil)

// DataEquals is true when the context data under key deep-equals value.
func DataEquals(key string, value any) Condition {
	return ConditionFunc(func(ctx context.Context, c *Context) (bool, error) {
		current, ok := c.GetData(key)
		if !ok {
			return false, nil
		}
		return reflect.DeepEqual(current, value), nil
	})
}

// DataTruthy is true when the context data under key is present and truthy.
// Nil, false, zero numbers, and empty strings, maps, and slices are falsy.
func DataTruthy(key string) Condition {
	return ConditionFunc(func(ctx context.Context, c *Context) (bool, error) {
		value, ok := c.GetData(key)
		if !ok {
			return false, nil
		}
		return truthy(value), nil
	})
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	}
	return true
}
