package cascade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPromiseResolve(t *testing.T) {
	promise := NewPromise[int]()
	go promise.Set(42, nil)

	value, err := promise.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, value)
}

func TestPromiseError(t *testing.T) {
	promise := NewPromise[string]()
	promise.Set("", errors.New("resolution failed"))

	value, err := promise.Get(context.Background())
	require.Error(t, err)
	require.Equal(t, "resolution failed", err.Error())
	require.Empty(t, value)
}

func TestPromiseFirstSetWins(t *testing.T) {
	promise := NewPromise[int]()
	promise.Set(1, nil)
	promise.Set(2, nil)

	value, err := promise.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, value)
}

func TestPromiseContextCancellation(t *testing.T) {
	promise := NewPromise[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := promise.Get(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitAll(t *testing.T) {
	promises := []*Promise[string]{
		NewPromise[string](),
		NewPromise[string](),
		NewPromise[string](),
	}
	promises[2].Set("c", nil)
	promises[0].Set("a", nil)
	promises[1].Set("b", nil)

	results, err := WaitAll(context.Background(), promises)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, results)
}

func TestWaitAllPartialFailure(t *testing.T) {
	promises := []*Promise[string]{
		NewPromise[string](),
		NewPromise[string](),
	}
	promises[0].Set("", errors.New("worker crashed"))
	promises[1].Set("ok", nil)

	results, err := WaitAll(context.Background(), promises)
	require.Error(t, err)
	require.Contains(t, err.Error(), "worker crashed")
	require.Equal(t, "ok", results[1])
}

func TestPtr(t *testing.T) {
	n := Ptr(3)
	require.NotNil(t, n)
	require.Equal(t, 3, *n)

	s := Ptr("hello")
	require.Equal(t, "hello", *s)
}
