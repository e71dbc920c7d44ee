package prompt

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"first", "1\n", 0},
		{"last", "3\n", 2},
		{"padded", "  2  \n", 1},
		{"blank cancels", "\n", -1},
		{"eof cancels", "", -1},
		{"answer without newline", "2", 1},
		{"retry after out of range", "9\n2\n", 1},
		{"retry after text", "two\n3\n", 2},
		{"invalid then eof", "x", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := New(strings.NewReader(tt.input), &out)

			got, err := p.Select("Select device", []string{"Living room", "New device", "Remove a device"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Select device\n  1) Living room\n  2) New device\n  3) Remove a device\n> ")
		})
	}
}

func TestSelect_RetryMessage(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("5\n1\n"), &out)

	_, err := p.Select("Pick", []string{"a", "b"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "between 1 and 2")
	assert.Equal(t, 2, strings.Count(out.String(), "Pick\n"))
}

func TestInput(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("  Kitchen TV \nnext\n"), &out)

	got, err := p.Input("Device name")
	require.NoError(t, err)
	assert.Equal(t, "Kitchen TV", got)
	assert.Equal(t, "Device name: ", out.String())

	got, err = p.Input("Again")
	require.NoError(t, err)
	assert.Equal(t, "next", got)

	got, err = p.Input("Empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestYesNo(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"maybe\n", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got, err := New(strings.NewReader(tt.input), &out).YesNo("Remove device \"TV\"?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Remove device \"TV\"? [y/N] ", out.String())
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("tty gone") }

func TestReadError(t *testing.T) {
	p := New(failingReader{}, &bytes.Buffer{})

	_, err := p.Select("x", []string{"a"})
	assert.ErrorContains(t, err, "tty gone")

	_, err = p.YesNo("x")
	assert.ErrorContains(t, err, "tty gone")
}

func TestErrorAndRefresh(t *testing.T) {
	var out bytes.Buffer
	refreshed := 0
	p := New(strings.NewReader(""), &out, WithRefresh(func() { refreshed++ }))

	p.Error("device locked")
	p.Refresh()

	assert.Equal(t, "error: device locked\n", out.String())
	assert.Equal(t, 1, refreshed)

	New(strings.NewReader(""), &out).Refresh()
}
