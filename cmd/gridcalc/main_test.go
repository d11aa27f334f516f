package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `{
  "name": "demo",
  "grids": [{
    "name": "Sheet1", "nbrOfRows": 5, "nbrOfCols": 3,
    "cells": {"A1": {"input": "2"}, "A2": {"input": "=A1*10"}, "B1": {"input": "=SEQUENCE(2)"}}
  }],
  "currentGridIndex": 0
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEval(t *testing.T) {
	path := writeFile(t, "doc.json", doc)
	out, err := run(t, "eval", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Sheet1!A2")
	assert.Contains(t, out, "20")
	assert.Contains(t, out, "Sheet1!B2")
}

func TestEvalWithEdits(t *testing.T) {
	path := writeFile(t, "doc.json", doc)
	saved := filepath.Join(t.TempDir(), "out.json")
	out, err := run(t, "eval", path, "--set", "A1=7", "--out", saved)
	require.NoError(t, err)
	assert.Contains(t, out, "70")

	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"input": "7"`)

	_, err = run(t, "eval", path, "--set", "A1")
	assert.Error(t, err)
	_, err = run(t, "eval", path, "--grid", "Nope")
	assert.Error(t, err)
}

func TestConfig(t *testing.T) {
	path := writeFile(t, "engine.hcl", "grid {\n  rows = 10\n  cols = 4\n}\n")
	out, err := run(t, "config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "grid 10x4")

	bad := writeFile(t, "bad.hcl", "grid {\n  rows = -1\n}\n")
	_, err = run(t, "config", bad)
	assert.Error(t, err)
}

func TestEvalRejectsInvalidConfig(t *testing.T) {
	path := writeFile(t, "doc.json", doc)
	bad := writeFile(t, "bad.hcl", "engine {\n  max_transactions = -1\n}\n")
	_, err := run(t, "eval", path, "--config", bad)
	assert.Error(t, err)

	good := writeFile(t, "good.hcl", "log {\n  level = \"warn\"\n}\n")
	out, err := run(t, "eval", path, "--config", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Sheet1!A2")
}
