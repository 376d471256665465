package strategy

import (
	"context"
	"testing"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		in      string
		want    Name
		wantErr bool
	}{
		{"", NameAuto, false},
		{"auto", NameAuto, false},
		{"classic", NameClassic, false},
		{"new", NameNew, false},
		{" New ", NameNew, false},
		{"fast", "", true},
		{"classic,new", "", true},
	}

	for _, tt := range tests {
		got, err := ParseName(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidConfiguration, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestOptionsFromMap(t *testing.T) {
	opts, err := OptionsFromMap(map[string]string{"strategy": "new", "replace": "false", "other": "x"})
	require.NoError(t, err)
	assert.Equal(t, NameNew, opts.Strategy)
	assert.Equal(t, map[string]string{"replace": "false", "other": "x"}, opts.Params)

	opts, err = OptionsFromMap(nil)
	require.NoError(t, err)
	assert.Equal(t, NameAuto, opts.Strategy)

	_, err = OptionsFromMap(map[string]string{"strategy": "bogus"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestBoolParam(t *testing.T) {
	opts := Options{Params: map[string]string{"a": "false", "b": "1", "c": "maybe", "d": ""}}

	v, err := opts.BoolParam("a", true)
	require.NoError(t, err)
	assert.False(t, v)

	v, err = opts.BoolParam("b", false)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = opts.BoolParam("c", true)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	v, err = opts.BoolParam("d", true)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = opts.BoolParam("missing", true)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       Name
		compatible bool
		want       Kind
		wantErr    error
	}{
		{NameClassic, true, KindCommandReplay, nil},
		{NameClassic, false, KindCommandReplay, nil},
		{NameNew, true, KindBlockTransfer, nil},
		{NameNew, false, 0, ErrIncompatibleEndpoints},
		{NameAuto, true, KindBlockTransfer, nil},
		{NameAuto, false, KindCommandReplay, nil},
		{"", true, KindBlockTransfer, nil},
		{"", false, KindCommandReplay, nil},
		{"other", true, 0, ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		src, dst := newMem(t), newMem(t)
		if !tt.compatible {
			// one incompatible side is enough
			dst = noDump{dst}
		}

		got, err := Resolve(ctx, src, dst, Options{Strategy: tt.name})
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, "%s/%t", tt.name, tt.compatible)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s/%t", tt.name, tt.compatible)
	}
}

func TestCompatible(t *testing.T) {
	ctx := context.Background()
	mem := newMem(t)

	assert.True(t, Compatible(ctx, mem, newMem(t)))
	assert.False(t, Compatible(ctx, noDump{mem}, newMem(t)))
	assert.False(t, Compatible(ctx, mem, noDump{newMem(t)}))

	redis6 := withFormat{mem, endpoint.DumpFormat{Family: "redis-rdb", Version: 600}}
	redis7 := withFormat{mem, endpoint.DumpFormat{Family: "redis-rdb", Version: 702}}

	// families must match
	assert.False(t, Compatible(ctx, mem, redis7))
	// blobs only move to the same or a newer version
	assert.True(t, Compatible(ctx, redis6, redis7))
	assert.True(t, Compatible(ctx, redis7, redis7))
	assert.False(t, Compatible(ctx, redis7, redis6))

	// an empty family is never compatible
	empty := withFormat{mem, endpoint.DumpFormat{}}
	assert.False(t, Compatible(ctx, empty, empty))
}

func TestSelect(t *testing.T) {
	ctx := context.Background()

	ui := &recorder{}
	s, err := Select(ctx, newMem(t), newMem(t), ui, Options{})
	require.NoError(t, err)
	assert.IsType(t, &BlockTransfer{}, s)
	assert.Equal(t, "New", s.String())
	assert.True(t, ui.contains(`STRATEGY: requested "auto", using New`))
	assert.False(t, ui.contains(`requested ""`))

	s, err = Select(ctx, newMem(t), newMem(t), nil, Options{Strategy: NameClassic})
	require.NoError(t, err)
	assert.IsType(t, &CommandReplay{}, s)
	assert.Equal(t, "Classic", s.String())

	s, err = Select(ctx, newMem(t), noDump{newMem(t)}, nil, Options{Strategy: NameNew})
	assert.ErrorIs(t, err, ErrIncompatibleEndpoints)
	assert.Nil(t, s)

	s, err = Select(ctx, newMem(t), newMem(t), nil, Options{Strategy: "turbo"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Nil(t, s)

	s, err = Select(ctx, newMem(t), newMem(t), nil, Options{Params: map[string]string{ParamReplace: "sometimes"}})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Nil(t, s)
}

func TestNewUnknownKind(t *testing.T) {
	s, err := New(Kind(42), newMem(t), newMem(t), nil, Options{})
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Nil(t, s)
	assert.Equal(t, "Kind(42)", Kind(42).String())
	assert.Equal(t, "classic", KindCommandReplay.String())
	assert.Equal(t, "new", KindBlockTransfer.String())
}

func TestOptionsAreCopied(t *testing.T) {
	ctx := context.Background()
	src, dst := newMem(t), newMem(t)
	require.NoError(t, src.SetString(ctx, "k", "new"))
	require.NoError(t, dst.SetString(ctx, "k", "old"))

	params := map[string]string{ParamReplace: "false"}
	opts := Options{Strategy: NameClassic, Params: params}
	s, err := Select(ctx, src, dst, nil, opts)
	require.NoError(t, err)

	// mutate everything the caller still holds
	params[ParamReplace] = "true"
	opts.Strategy = NameNew

	got := s.(*CommandReplay).Options()
	assert.Equal(t, NameClassic, got.Strategy)
	assert.Equal(t, "false", got.Params[ParamReplace])

	copied, err := s.Copy(ctx, "k")
	require.NoError(t, err)
	assert.False(t, copied)
	v, err := dst.GetString(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "old", v)

	// the returned options are a copy as well
	got.Params[ParamReplace] = "true"
	assert.Equal(t, "false", s.(*CommandReplay).Options().Params[ParamReplace])
}
