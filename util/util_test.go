package util

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY_1", "value")
	defer os.Unsetenv("TEST_KEY_1")

	require.Equal(t, "value", GetEnv("TEST_KEY_1", "default"))
	require.Equal(t, "default", GetEnv("TEST_KEY_MISSING", "default"))
}

func TestGetEnvAsInt(t *testing.T) {
	os.Setenv("TEST_KEY_2", "42")
	defer os.Unsetenv("TEST_KEY_2")

	require.Equal(t, 42, GetEnvAsInt("TEST_KEY_2", 7))
	require.Equal(t, 7, GetEnvAsInt("TEST_KEY_MISSING", 7))

	os.Setenv("TEST_KEY_3", "not a number")
	defer os.Unsetenv("TEST_KEY_3")

	require.Equal(t, 7, GetEnvAsInt("TEST_KEY_3", 7))
}

func TestIsBlank(t *testing.T) {
	require.True(t, IsBlank(""))
	require.True(t, IsBlank("   \t "))
	require.False(t, IsBlank(" x "))
}

func TestIsDigits(t *testing.T) {
	require.True(t, IsDigits("0123456789"))
	require.False(t, IsDigits(""))
	require.False(t, IsDigits("12a4"))
	require.False(t, IsDigits("+123"))
}

func TestFileExists(t *testing.T) {
	f, err := os.CreateTemp("", "util_test")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	f.Close()

	require.True(t, FileExists(f.Name()))
	require.False(t, FileExists(f.Name()+".missing"))
}
