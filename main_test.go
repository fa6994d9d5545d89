package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/beanledger/cli"
)

func TestBuildVersion(t *testing.T) {
	defer func(v, sha string) { Version, CommitSHA = v, sha }(Version, CommitSHA)

	Version, CommitSHA = "", ""
	assert.Equal(t, "dev", buildVersion())

	Version, CommitSHA = "1.2.0", "abc123"
	assert.Equal(t, "1.2.0 (abc123)", buildVersion())
}

func TestExe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.beancount")
	assert.NoError(t, os.WriteFile(path, []byte(`
2024-01-01 open Assets:Cash USD
2024-01-01 open Expenses:Food

2024-01-10 * "Grocer"
  Assets:Cash  -50.00 USD
  Expenses:Food

2024-02-01 balance Assets:Cash -50.00 USD
`), 0o644))

	run := func(args ...string) (string, error) {
		var stdout, stderr bytes.Buffer
		var a app
		parser, err := newParser(&a, kong.Writers(&stdout, &stderr), kong.Exit(func(int) {}))
		assert.NoError(t, err)
		ctx, err := parser.Parse(args)
		if err != nil {
			return "", err
		}
		err = ctx.Run()
		return stdout.String() + stderr.String(), err
	}

	out, err := run("check", path)
	assert.NoError(t, err)
	assert.Contains(t, out, "no errors")

	out, err = run("query", path, "SELECT account, sum(position) GROUP BY account ORDER BY account")
	assert.NoError(t, err)
	assert.Contains(t, out, "Expenses:Food")
	assert.Contains(t, out, "2 row(s)")

	assert.NoError(t, os.WriteFile(path, []byte("2024-01-10 * \"Grocer\"\n  Assets:Cash  -50.00 USD\n  Expenses:Food  50.00 USD\n"), 0o644))
	_, err = run("check", path)
	assert.IsError(t, err, cli.ErrCheckFailed)
}
