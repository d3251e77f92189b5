package scopes_test

import (
	"testing"

	"github.com/jrsteele09/go-oauth-provider/scopes"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"blank", "   ", []string{}},
		{"single", "read", []string{"read"}},
		{"multiple", "read write", []string{"read", "write"}},
		{"extra whitespace", "  read \t write\n", []string{"read", "write"}},
		{"duplicates dropped", "read write read", []string{"read", "write"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, scopes.Parse(tt.input))
		})
	}
}

func TestFormatStableOrder(t *testing.T) {
	require.Equal(t, "admin read write", scopes.Format([]string{"write", "admin", "read"}))
	require.Equal(t, "", scopes.Format(nil))
}

func TestParseFormatRoundTrip(t *testing.T) {
	sets := [][]string{
		{},
		{"read"},
		{"read", "write"},
		{"a", "b", "c", "d"},
	}
	for _, set := range sets {
		require.True(t, scopes.Identical(set, scopes.Parse(scopes.Format(set))))
	}
}

func TestIdentical(t *testing.T) {
	require.True(t, scopes.Identical([]string{"read", "write"}, []string{"write", "read"}))
	require.True(t, scopes.Identical(nil, []string{}))
	require.False(t, scopes.Identical([]string{"read"}, []string{"read", "write"}))
	require.False(t, scopes.Identical([]string{"read"}, []string{"write"}))
}

func TestContains(t *testing.T) {
	granted := []string{"read", "write"}
	require.True(t, scopes.Contains(granted, []string{"read"}))
	require.True(t, scopes.Contains(granted, []string{"read", "write"}))
	require.True(t, scopes.Contains(granted, nil))
	require.False(t, scopes.Contains(granted, []string{"read", "write", "admin"}))
	require.False(t, scopes.Contains(nil, []string{"read"}))
}
