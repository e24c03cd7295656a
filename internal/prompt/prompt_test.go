package prompt

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"long yes", "YES\n", true},
		{"no", "n\n", false},
		{"anything else", "sure\n", false},
		{"empty line", "\n", false},
		{"no trailing newline", "y", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewWithIO(strings.NewReader(tt.input), &out, false)
			got, err := p.Confirm(context.Background(), "Delete 3 unused host objects?", "Backup written")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Delete 3 unused host objects? (y/n)")
			assert.Contains(t, out.String(), "Backup written")
		})
	}
}

func TestConfirm_EndOfInput(t *testing.T) {
	p := NewWithIO(strings.NewReader(""), &bytes.Buffer{}, false)
	_, err := p.Confirm(context.Background(), "Continue?", "")
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestConfirm_AssumeYes(t *testing.T) {
	var out bytes.Buffer
	p := NewWithIO(strings.NewReader(""), &out, true)
	got, err := p.Confirm(context.Background(), "Continue?", "")
	require.NoError(t, err)
	assert.True(t, got)
	assert.Empty(t, out.String(), "nothing is asked")
}

func TestConfirm_SequentialAnswers(t *testing.T) {
	p := NewWithIO(strings.NewReader("y\nn\n"), &bytes.Buffer{}, false)
	first, err := p.Confirm(context.Background(), "one", "")
	require.NoError(t, err)
	second, err := p.Confirm(context.Background(), "two", "")
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)
}

func TestCredentials(t *testing.T) {
	p := NewWithIO(strings.NewReader(" admin \nsecret\n"), &bytes.Buffer{}, false)
	creds, err := p.Credentials(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "admin", creds.Username)
	assert.Equal(t, "secret", creds.Password)
}

func TestCredentials_OnlyMissingAsked(t *testing.T) {
	var out bytes.Buffer
	p := NewWithIO(strings.NewReader("secret\n"), &out, false)
	creds, err := p.Credentials(context.Background(), "admin", "")
	require.NoError(t, err)
	assert.Equal(t, "admin", creds.Username)
	assert.Equal(t, "secret", creds.Password)
	assert.NotContains(t, out.String(), "Username")

	creds, err = NewWithIO(strings.NewReader(""), &out, false).Credentials(context.Background(), "admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, "pw", creds.Password)
}

func TestCredentials_Empty(t *testing.T) {
	p := NewWithIO(strings.NewReader("\n\n"), &bytes.Buffer{}, false)
	_, err := p.Credentials(context.Background(), "", "")
	assert.Error(t, err)
}
