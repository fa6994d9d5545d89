package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/budget"
	"github.com/robinvdvleuten/beanledger/loader"
)

func TestGenerateLoadsCleanly(t *testing.T) {
	for _, seed := range []int64{1, 7, 42} {
		g := newGenerator(seed, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))

		var buf strings.Builder
		assert.NoError(t, g.generate(&buf, 64*1024))
		assert.True(t, g.written >= 64*1024)
		assert.Equal(t, buf.Len(), g.written)
		assert.True(t, g.transactions > 0)

		result := loader.New().LoadSource(context.Background(), "large.beancount", []byte(buf.String()))
		assert.Equal(t, 0, len(result.Errors), "seed %d: %v", seed, result.Errors)
		assert.Equal(t, g.transactions, len(ast.Filter[*ast.Transaction](result.Entries)))

		_, errs := budget.Parse(result.Entries)
		assert.Equal(t, 0, len(errs))
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	var a, b strings.Builder
	assert.NoError(t, newGenerator(3, start).generate(&a, 8*1024))
	assert.NoError(t, newGenerator(3, start).generate(&b, 8*1024))
	assert.Equal(t, a.String(), b.String())
}
