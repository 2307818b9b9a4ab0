// Package extract implements the extraction driver: it walks the game
// graph in deterministic order, issues a CAS read per part, and
// delivers the result to an output sink. Concurrency is the only place
// parallelism is permitted: a bounded worker pool pulls from the
// graph's deterministic traversal, so logging stays reproducible even
// though completion order is not guaranteed.
package extract

import (
	"context"
	"errors"
	"sync"

	"github.com/deploymenttheory/frostbite-extract/internal/cas"
	"github.com/deploymenttheory/frostbite-extract/internal/errs"
	"github.com/deploymenttheory/frostbite-extract/internal/graph"
	"github.com/deploymenttheory/frostbite-extract/internal/obslog"
	"github.com/sourcegraph/conc/pool"
)

// Sink is the core-facing output interface: identity is a logical path
// for EBX/RES, a uid-hex string for CHUNK, or a sha1-hex string for a
// free-standing TOC resource.
type Sink interface {
	Write(kind graph.PartKind, identity string, meta []byte, data []byte) error
}

// PartError records one failed part for the run summary.
type PartError struct {
	Kind        graph.PartKind
	Identity    string
	Superbundle string
	Bundle      string
	Err         error
}

// Summary is the run-level result the driver returns: counts of
// extracted, skipped-as-unavailable, and failed parts, plus the
// individual failures for diagnostics.
type Summary struct {
	Extracted          int
	SkippedUnavailable int
	Failed             int
	Errors             []PartError
}

// Driver holds the read-only substrate (graph, CAS reader) shared by
// every worker and the sink each extracted part is delivered to.
type Driver struct {
	Graph   graph.PartSource
	CAS     *cas.Reader
	Sink    Sink
	Workers int
}

// Run walks the graph's deterministic part ordering and extracts every
// part through a worker pool of Driver.Workers goroutines (default 1
// if unset). Cancellation is polled between parts, not mid-part: once
// ctx is done, no new part is submitted to the pool, but in-flight
// reads complete and are still recorded in the summary.
func (d *Driver) Run(ctx context.Context) Summary {
	workers := d.Workers
	if workers <= 0 {
		workers = 1
	}

	items := d.Graph.Walk()

	var mu sync.Mutex
	summary := Summary{}

	p := pool.New().WithMaxGoroutines(workers)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		item := item
		p.Go(func() {
			d.extractOne(item, &mu, &summary)
		})
	}
	p.Wait()

	return summary
}

func (d *Driver) extractOne(item graph.Part, mu *sync.Mutex, summary *Summary) {
	var uncompressed *uint64
	if item.HasUncompressedSize {
		v := item.UncompressedSize
		uncompressed = &v
	}

	data, err := d.CAS.Read(item.CASID, item.CASOffset, item.CompressedSize, uncompressed)

	mu.Lock()
	defer mu.Unlock()

	if err != nil {
		if errors.Is(err, errs.BundleUnavailable) {
			summary.SkippedUnavailable++
			obslog.LogWarn("bundle unavailable, skipping part", map[string]interface{}{
				"kind": item.Kind.String(), "identity": item.Identity,
				"superbundle": item.Superbundle, "bundle": item.Bundle,
			})
			return
		}
		summary.Failed++
		summary.Errors = append(summary.Errors, PartError{
			Kind: item.Kind, Identity: item.Identity,
			Superbundle: item.Superbundle, Bundle: item.Bundle, Err: err,
		})
		obslog.LogError("part extraction failed", err, map[string]interface{}{
			"kind": item.Kind.String(), "identity": item.Identity,
		})
		return
	}

	if werr := d.Sink.Write(item.Kind, item.Identity, item.Meta, data); werr != nil {
		summary.Failed++
		summary.Errors = append(summary.Errors, PartError{
			Kind: item.Kind, Identity: item.Identity,
			Superbundle: item.Superbundle, Bundle: item.Bundle, Err: werr,
		})
		obslog.LogError("sink write failed", werr, map[string]interface{}{
			"kind": item.Kind.String(), "identity": item.Identity,
		})
		return
	}

	summary.Extracted++
}
