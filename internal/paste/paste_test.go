package paste

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppleScript(t *testing.T) {
	assert.Equal(t,
		`tell application "System Events" to keystroke "v" using command down`,
		appleScript(""))

	got := appleScript(`Text "Edit"`)
	assert.Contains(t, got, `tell application "Text \"Edit\"" to activate`)
	assert.Contains(t, got, "keystroke \"v\" using command down")
}

func TestXdotoolArgs(t *testing.T) {
	args, err := xdotoolArgs("")
	require.NoError(t, err)
	assert.Equal(t, []string{"key", "--clearmodifiers", "ctrl+v"}, args)

	args, err = xdotoolArgs("0x3a00007")
	require.NoError(t, err)
	assert.Equal(t, []string{"windowactivate", "--sync", "0x3a00007", "key", "--clearmodifiers", "ctrl+v"}, args)

	_, err = xdotoolArgs("; rm -rf /")
	assert.Error(t, err)
}

func TestWtypeArgs(t *testing.T) {
	assert.Equal(t, []string{"-M", "ctrl", "v", "-m", "ctrl"}, wtypeArgs())
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.InjectPaste("anything"))
}
