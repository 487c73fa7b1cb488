package main

import (
	"bytes"
	"flag"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmer(t *testing.T) {
	var out bytes.Buffer
	c := confirmer(false, strings.NewReader("y\n"), &out)
	assert.True(t, c.Confirm("Delete?"))
	assert.Equal(t, "Delete? [y/N] ", out.String())

	assert.False(t, confirmer(false, strings.NewReader("\n"), &out).Confirm("Delete?"))
	assert.False(t, confirmer(false, strings.NewReader(""), &out).Confirm("Delete?"))
	assert.True(t, confirmer(false, strings.NewReader("Oui\n"), &out).Confirm("Delete?"))
	assert.True(t, confirmer(true, strings.NewReader(""), &out).Confirm("Delete?"))
}

func TestParseInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	title := fs.String("title", "", "")
	at := fs.Int("at", -1, "")

	pos, err := parseInterspersed(fs, []string{"sheet-1", "-title", "Intro", "section", "-at", "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sheet-1", "section"}, pos)
	assert.Equal(t, "Intro", *title)
	assert.Equal(t, 2, *at)
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n  b", indent("a\nb", "  "))
}
