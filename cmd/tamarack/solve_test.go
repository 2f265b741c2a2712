package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSolveCommand(t *testing.T) {
	assert := require.New(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"-v", "off", "solve", "--workers", "1", "--seed", "7", "testdata/knapsack.yaml"})

	assert.NoError(rootCmd.Execute())
	assert.Contains(out.String(), "status:     optimal")
	assert.Contains(out.String(), "objective:  11")
}
