// Package batch rewrites many documents in parallel. Each document gets its
// own citation registry, so results never depend on batch order.
package batch

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dbh/mdcite/internal/citation"
	"github.com/dbh/mdcite/internal/markdown"
	"github.com/dbh/mdcite/internal/report"
)

// Document is one input to a batch.
type Document struct {
	Name    string
	Content string
}

// Options apply to every document in a batch.
type Options struct {
	Citation citation.Options
	HTML     markdown.HTMLMode
	// Limit caps concurrent transforms; <= 0 means GOMAXPROCS.
	Limit int
}

// Result is the outcome for one document. Err is set when the document could
// not be prepared; the other fields are then zero.
type Result struct {
	Name      string
	Converted bool
	Rewrite   *citation.Result
	Stats     report.Stats
	Elapsed   time.Duration
	Err       error
}

// Process prepares and rewrites a single document.
func Process(doc Document, opts Options) Result {
	start := time.Now()
	res := Result{Name: doc.Name}

	content, converted, err := markdown.Prepare(doc.Content, opts.HTML, "")
	if err != nil {
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}

	res.Converted = converted
	res.Rewrite = citation.Rewrite(content, opts.Citation)
	res.Stats = report.Compare(doc.Content, res.Rewrite.Text)
	res.Elapsed = time.Since(start)
	return res
}

// Run processes docs concurrently and returns results in input order.
// Cancelling ctx stops documents that have not started yet and Run then
// returns ctx.Err().
func Run(ctx context.Context, docs []Document, opts Options) ([]Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, doc := range docs {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = Process(doc, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
