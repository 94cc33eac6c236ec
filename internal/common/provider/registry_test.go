package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface{ Greet() string }

type staticGreeter string

func (g staticGreeter) Greet() string { return string(g) }

func TestRegistry_NewAndAvailable(t *testing.T) {
	r := NewRegistry[greeter, string]("greeter")
	r.Register("static", func(ctx context.Context, p string) (greeter, error) {
		return staticGreeter("hello " + p), nil
	})
	r.Register("alt", func(ctx context.Context, p string) (greeter, error) {
		return staticGreeter("alt"), nil
	})

	g, err := r.New(context.Background(), "static", "crm")
	require.NoError(t, err)
	assert.Equal(t, "hello crm", g.Greet())
	assert.Equal(t, []string{"alt", "static"}, r.Available())
}

func TestRegistry_UnknownName(t *testing.T) {
	r := NewRegistry[greeter, string]("greeter")
	_, err := r.New(context.Background(), "missing", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown greeter provider: "missing"`)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry[greeter, string]("greeter")
	f := func(ctx context.Context, p string) (greeter, error) { return staticGreeter(""), nil }
	r.Register("x", f)
	assert.Panics(t, func() { r.Register("x", f) })
}
