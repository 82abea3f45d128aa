package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalIndentedAddsTrailingNewline(t *testing.T) {
	data, err := MarshalIndented(map[string]int{"a": 1})
	require.NoError(t, err)
	require.True(t, data[len(data)-1] == '\n')
	require.Contains(t, string(data), "  \"a\": 1")
}
