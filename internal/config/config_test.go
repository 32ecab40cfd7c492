package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAssignsStartingAtDriveC(t *testing.T) {
	table, err := Build([]string{t.TempDir(), t.TempDir()}, nil)
	require.NoError(t, err)

	assert.False(t, table[0].Mapped)
	assert.False(t, table[1].Mapped)
	assert.True(t, table[FirstDrive].Mapped)
	assert.True(t, table[FirstDrive+1].Mapped)
	assert.False(t, table[FirstDrive+2].Mapped)
}

func TestBuildRejectsTooManyPaths(t *testing.T) {
	paths := make([]string, MaxDrives+1)
	for i := range paths {
		paths[i] = t.TempDir()
	}
	_, err := Build(paths, nil)
	assert.Error(t, err)
}

func TestBuildRejectsMissingPath(t *testing.T) {
	_, err := Build([]string{"/does/not/exist/anywhere"}, nil)
	assert.Error(t, err)
}
