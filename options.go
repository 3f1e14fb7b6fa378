// Copyright 2024 The Segheap Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segheap

import "fmt"

// FitPolicy selects how the placement engine picks among candidate blocks
// within a bin. See the FitBest/FitFirst documentation.
type FitPolicy int

const (
	// FitBest scans a bin fully (subject to the early-exit slack
	// threshold) and places into the smallest block that still fits,
	// spec.md §4.5's default.
	FitBest FitPolicy = iota

	// FitFirst places into the first block in a bin that fits, without
	// comparing against later candidates. Offered because spec.md §6
	// enumerates it as a configuration knob, not because segheap's
	// default behavior uses it.
	FitFirst
)

// InsertPolicy selects how a freed block is positioned within its bin's
// list.
type InsertPolicy int

const (
	// InsertLIFO pushes newly freed blocks onto the head of their bin,
	// spec.md §6's default.
	InsertLIFO InsertPolicy = iota

	// InsertAddressOrdered keeps each bin sorted ascending by block
	// address instead, trading insert cost (a bin walk) for free lists
	// that coalesce-scan and dump in address order.
	InsertAddressOrdered
)

// Options amend the behavior of New, following the same "typed-int enum
// constants plus a private validated cache field" shape as
// github.com/cznic/exp/dbm's Options (dbm/options.go).
type Options struct {
	// InitialChunk is the size in bytes of the first chunk requested
	// from the region provider. Default defaultInitialChunk (256).
	InitialChunk int

	// MaxRegion caps the total size of the region. Default and hard
	// ceiling defaultMaxRegion (1<<32), per spec.md §1.
	MaxRegion int

	// Fit selects the placement engine's fit policy. Default FitBest.
	Fit FitPolicy

	// Insert selects the free-list store's insertion policy. Default
	// InsertLIFO.
	Insert InsertPolicy

	// DebugChecks runs the full invariant checker after every mutating
	// call, accumulating Diagnostics on *Allocator.LastDiagnostics
	// instead of only when Check is called explicitly.
	DebugChecks bool

	// ViewHeap, if set alongside DebugChecks, has the checker also dump
	// a one-line-per-block heap walk to the Diagnostic stream.
	ViewHeap bool

	// ViewFreeList, if set alongside DebugChecks, has the checker also
	// dump each bin's free list contents to the Diagnostic stream.
	ViewFreeList bool

	// Region overrides the default RegionProvider. Tests and non-mmap
	// hosts pass a sliceRegion-backed provider here via WithRegion.
	region RegionProvider

	validated bool
}

// Option mutates an Options value during New.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		InitialChunk: defaultInitialChunk,
		MaxRegion:    defaultMaxRegion,
		Fit:          FitBest,
		Insert:       InsertLIFO,
	}
}

// WithInitialChunk overrides the first-chunk size.
func WithInitialChunk(n int) Option {
	return func(o *Options) { o.InitialChunk = n }
}

// WithMaxRegion overrides the region size cap. n must not exceed
// defaultMaxRegion.
func WithMaxRegion(n int) Option {
	return func(o *Options) { o.MaxRegion = n }
}

// WithFitPolicy overrides the placement engine's fit policy.
func WithFitPolicy(p FitPolicy) Option {
	return func(o *Options) { o.Fit = p }
}

// WithInsertPolicy overrides the free-list store's insertion policy.
func WithInsertPolicy(p InsertPolicy) Option {
	return func(o *Options) { o.Insert = p }
}

// WithDebugChecks enables the post-mutation invariant audit.
func WithDebugChecks(view bool) Option {
	return func(o *Options) {
		o.DebugChecks = true
		o.ViewHeap = view
		o.ViewFreeList = view
	}
}

// WithRegion installs a caller-supplied RegionProvider, bypassing the
// platform default (mmap on unix, MapViewOfFile on windows). Used by tests to run against
// sliceRegion.
func WithRegion(r RegionProvider) Option {
	return func(o *Options) { o.region = r }
}

func (o *Options) validate() error {
	if o.validated {
		return nil
	}

	if o.InitialChunk <= 0 {
		return fmt.Errorf("segheap: InitialChunk must be positive, got %d", o.InitialChunk)
	}
	if o.MaxRegion <= 0 || o.MaxRegion > defaultMaxRegion {
		return fmt.Errorf("segheap: MaxRegion must be in (0, %d], got %d", defaultMaxRegion, o.MaxRegion)
	}

	o.validated = true
	return nil
}
