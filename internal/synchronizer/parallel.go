package synchronizer

import (
	"cmp"
	"context"
	"encoding/binary"
	"fmt"
	"iter"
	"slices"

	"github.com/vitebski/tablesync/internal/dataset"
	"github.com/vitebski/tablesync/pkg/models"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"
)

type numberedRow struct {
	ordinal int
	row     dataset.Row
}

// partition splits rows into n disjoint groups. Keyed rows go to the group
// selected by the hash of their key values, so every occurrence of a key is
// handled by the same worker in input order. Unkeyed rows are split into
// contiguous chunks.
func partition(rows iter.Seq2[int, dataset.Row], keys []string, n int) [][]numberedRow {
	groups := make([][]numberedRow, n)

	if len(keys) == 0 {
		var all []numberedRow
		for ordinal, row := range rows {
			all = append(all, numberedRow{ordinal, row})
		}
		chunk := (len(all) + n - 1) / n
		for i := range groups {
			lo := min(i*chunk, len(all))
			hi := min(lo+chunk, len(all))
			groups[i] = all[lo:hi]
		}
		return groups
	}

	for ordinal, row := range rows {
		i := keyPartition(row, keys, n)
		groups[i] = append(groups[i], numberedRow{ordinal, row})
	}
	return groups
}

// keyPartition hashes the key values of a row with BLAKE3
func keyPartition(row dataset.Row, keys []string, n int) int {
	h := blake3.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%v\x00", dataset.CoerceNull(row[k]))
	}
	sum := h.Sum(nil)
	return int(binary.LittleEndian.Uint64(sum[:8]) % uint64(n))
}

// sequence yields the rows of one partition with their original ordinals
func sequence(rows []numberedRow) iter.Seq2[int, dataset.Row] {
	return func(yield func(int, dataset.Row) bool) {
		for _, r := range rows {
			if !yield(r.ordinal, r.row) {
				return
			}
		}
	}
}

// runParallel runs the sequential algorithm on each partition with its own
// transactions and merges the results. Failures are reported in row order.
// The first fatal error cancels the other workers; the counts of every batch
// committed before that are still returned.
func (s *Synchronizer) runParallel(ctx context.Context, op *operation, data dataset.Dataset, result *models.OperationResult) error {
	groups := partition(data.Rows(), op.stmts.keys, op.workers)
	partials := make([]models.OperationResult, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		if len(group) == 0 {
			continue
		}
		g.Go(func() error {
			op.log.Debugf("Worker %d processing %d rows", i, len(group))
			return s.run(gctx, op, sequence(group), &partials[i])
		})
	}
	err := g.Wait()

	for _, p := range partials {
		result.Insertions += p.Insertions
		result.Updates += p.Updates
		result.Skips += p.Skips
		result.Failures = append(result.Failures, p.Failures...)
	}
	slices.SortFunc(result.Failures, func(a, b models.RowFailure) int {
		return cmp.Compare(a.Row, b.Row)
	})
	return err
}
