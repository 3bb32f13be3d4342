package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCodeList(t *testing.T) {
	input := "CODE1\n  CODE2  \n\n\tCODE3\r\n\n"

	codes, err := ParseCodeList(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"CODE1", "CODE2", "CODE3"}, codes)
}

func TestParseCodeListEmpty(t *testing.T) {
	codes, err := ParseCodeList(strings.NewReader("\n \n"))
	require.NoError(t, err)
	assert.Empty(t, codes)
}
