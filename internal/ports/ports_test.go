package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portprobe/internal/errors"
)

func seq(lo, hi uint16) Set {
	out := make(Set, 0, int(hi-lo)+1)
	for p := lo; p <= hi; p++ {
		out = append(out, p)
	}
	return out
}

func TestExpand_Valid(t *testing.T) {
	tests := []struct {
		spec string
		want Set
	}{
		{"22", Set{22}},
		{"22,80,443", Set{22, 80, 443}},
		{"443,80,22", Set{22, 80, 443}},
		{"1-3,2-4", Set{1, 2, 3, 4}},
		{"443-80", seq(80, 443)},
		{" 22 , 80 - 82 ", Set{22, 80, 81, 82}},
		{"80,80,80", Set{80}},
		{"81,80-82", Set{80, 81, 82}},
		{"65535", Set{65535}},
		{"1-1", Set{1}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := Expand(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpand_StrictlyAscending(t *testing.T) {
	got, err := Expand("9000-8990,22,8995,1-5,3")
	require.NoError(t, err)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i], "ports must be strictly ascending at index %d", i)
	}
}

func TestExpand_FullRange(t *testing.T) {
	got, err := Expand("1-65535")
	require.NoError(t, err)
	assert.Equal(t, 65535, got.Len())
	assert.Equal(t, uint16(1), got[0])
	assert.Equal(t, uint16(65535), got[len(got)-1])
}

func TestExpand_Invalid(t *testing.T) {
	tests := []struct {
		spec  string
		token string
	}{
		{"abc", "abc"},
		{"22,abc", "abc"},
		{"80-", "80-"},
		{"-80", "-80"},
		{"1-2-3", "1-2-3"},
		{"0", "0"},
		{"65536", "65536"},
		{"1-70000", "1-70000"},
		{"22,,80", ""},
		{"22,", ""},
		{"22.5", "22.5"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := Expand(tt.spec)
			require.Error(t, err)
			assert.Nil(t, got, "no partial set may be returned")
			assert.True(t, errors.IsCode(err, errors.CodePortSpecInvalid))

			var parseErr *errors.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tt.token, parseErr.Token)
		})
	}
}

func TestExpand_Empty(t *testing.T) {
	for _, spec := range []string{"", "   ", "\t"} {
		_, err := Expand(spec)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodePortSpecInvalid))
	}
}

func TestSet_Contains(t *testing.T) {
	s := Set{22, 80, 443}
	assert.True(t, s.Contains(80))
	assert.False(t, s.Contains(81))
	assert.False(t, Set(nil).Contains(1))
}

func TestSet_String(t *testing.T) {
	tests := []struct {
		set  Set
		want string
	}{
		{nil, ""},
		{Set{22}, "22"},
		{Set{22, 80, 81, 82, 443}, "22,80-82,443"},
		{seq(1, 1000), "1-1000"},
		{Set{65534, 65535}, "65534-65535"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.set.String())
		})
	}
}

func TestSet_StringRoundTrip(t *testing.T) {
	original, err := Expand("1-3,10,12-14,443-80")
	require.NoError(t, err)

	again, err := Expand(original.String())
	require.NoError(t, err)
	assert.Equal(t, original, again)
}

func BenchmarkExpand(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Expand("1-65535,22,80,443,8000-9000"); err != nil {
			b.Fatalf("Expand failed: %v", err)
		}
	}
}
