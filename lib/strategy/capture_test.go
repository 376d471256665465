package strategy

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureReturned(t *testing.T) {
	ctx := context.Background()
	ep := newMem(t)
	require.NoError(t, ep.SetString(ctx, "foo", "bar"))

	out := Capture(ctx, ep, func(ctx context.Context, ep endpoint.Endpoint) (string, error) {
		return ep.GetString(ctx, "foo")
	})
	assert.True(t, out.Returned())
	assert.Equal(t, "bar", out.Value)
	assert.NoError(t, out.Err)
}

func TestCaptureRaised(t *testing.T) {
	ctx := context.Background()
	ep := newMem(t)

	out := Capture(ctx, ep, func(ctx context.Context, ep endpoint.Endpoint) (string, error) {
		return ep.GetString(ctx, "missing")
	})
	assert.False(t, out.Returned())
	assert.ErrorIs(t, out.Err, endpoint.ErrNotFound)
	assert.Nil(t, out.Value)
}

func TestCapturePanic(t *testing.T) {
	var out Outcome
	assert.NotPanics(t, func() {
		out = Capture(context.Background(), nil, func(context.Context, endpoint.Endpoint) (int, error) {
			panic("boom")
		})
	})
	assert.False(t, out.Returned())

	var perr *PanicError
	require.ErrorAs(t, out.Err, &perr)
	assert.Equal(t, "boom", perr.Value)
	assert.NotEmpty(t, perr.Stack)
	assert.Equal(t, "panic: boom", perr.Error())
}

func TestOutcomeEqual(t *testing.T) {
	notFound := Outcome{Err: endpoint.ErrNotFound}

	tests := []struct {
		name string
		a, b Outcome
		want bool
	}{
		{"same string", Outcome{Value: "a"}, Outcome{Value: "a"}, true},
		{"different string", Outcome{Value: "a"}, Outcome{Value: "b"}, false},
		{"same map", Outcome{Value: map[string]string{"a": "1"}}, Outcome{Value: map[string]string{"a": "1"}}, true},
		{"different types", Outcome{Value: "1"}, Outcome{Value: 1}, false},
		{"returned vs raised", Outcome{Value: "a"}, notFound, false},
		{"raised vs returned", notFound, Outcome{Value: "a"}, false},
		{"same endpoint error", notFound, Outcome{Err: endpoint.NewError(endpoint.RetCNotFound, "key not found")}, true},
		{"same code other message", notFound, Outcome{Err: endpoint.NewError(endpoint.RetCNotFound, "gone")}, false},
		{"wrapped endpoint error", Outcome{Err: fmt.Errorf("read: %w", endpoint.ErrWrongType)}, Outcome{Err: endpoint.ErrWrongType}, true},
		{"plain errors", Outcome{Err: errors.New("x")}, Outcome{Err: errors.New("x")}, false},
		{"panics", Outcome{Err: &PanicError{Value: "x"}}, Outcome{Err: &PanicError{Value: "x"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, `returned("bar")`, Outcome{Value: "bar"}.String())
	assert.Contains(t, Outcome{Err: endpoint.ErrNotFound}.String(), "raised(")
	assert.Contains(t, Outcome{Err: endpoint.ErrNotFound}.String(), "key not found")
}
