package train

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pbcompress/pbc"
)

// outerPoolSize bounds the coarse-grained per-row fan-out. The fine-grained
// per-pair fan-out within a row is bounded by Threads.
const outerPoolSize = 64

// A Trainer learns a pattern dictionary from a record corpus by
// agglomerative clustering: every record starts as its own cluster and the
// pair with the globally minimal encoding-length increment is merged until
// the target count is reached.
type Trainer struct {
	// Encoder is the secondary strategy trained on the residue after the
	// dictionary is fixed. nil means pbc-only.
	Encoder pbc.SecondaryEncoder

	// Threads is the width of the inner worker pool. Zero selects the
	// single-threaded path.
	Threads int

	// Logger receives training progress. nil means slog.Default().
	Logger *slog.Logger

	records  [][]byte
	clusters []*cluster
}

// NewTrainer returns a trainer using enc as the secondary strategy and
// threads inner workers.
func NewTrainer(enc pbc.SecondaryEncoder, threads int) *Trainer {
	return &Trainer{Encoder: enc, Threads: threads}
}

// LoadData parses a raw training buffer and adds its records to the corpus.
// May be called more than once.
func (t *Trainer) LoadData(buf []byte, kind InputKind) error {
	records, err := ParseRecords(buf, kind)
	if err != nil {
		return err
	}
	t.LoadRecords(records)
	return nil
}

// LoadRecords adds pre-split records to the corpus. Empty records are
// skipped.
func (t *Trainer) LoadRecords(records [][]byte) {
	for _, r := range records {
		if len(r) == 0 {
			continue
		}
		t.records = append(t.records, r)
		t.clusters = append(t.clusters, newCluster(r, len(t.clusters)))
	}
}

// Train reduces the corpus to at most k clusters and returns the pattern
// file: the emitted skeletons followed by the secondary encoder's trained
// state. Only clusters that absorbed more than one record and whose
// skeleton is longer than one byte are emitted; the rest would not help
// compression.
func (t *Trainer) Train(k int) ([]byte, error) {
	if k < 1 {
		return nil, fmt.Errorf("train: target pattern count %d", k)
	}
	if len(t.clusters) == 0 {
		return nil, errors.New("train: no training records loaded")
	}
	log := t.logger()

	t.dedup()
	log.Info("training patterns", "records", len(t.records), "heads", len(t.clusters), "target", k)

	t.computeNearest()

	heads := len(t.clusters)
	reportEvery := (heads - k) / 100
	if reportEvery < 1 {
		reportEvery = 1
	}
	for merges := 0; heads > k; merges++ {
		a, b := t.closestPair()
		if a < 0 {
			log.Info("no productive merges remain", "heads", heads)
			break
		}
		t.merge(a, b)
		heads--
		if merges%reportEvery == 0 {
			log.Debug("merging clusters", "heads", heads, "target", k)
		}
	}

	var skeletons [][]byte
	for i, c := range t.clusters {
		if c.head != i {
			continue
		}
		if len(c.pattern) > 1 && c.records > 1 {
			skeletons = append(skeletons, c.pattern)
		}
	}
	log.Info("emitting patterns", "count", len(skeletons))
	blob := pbc.AppendPatternFile(nil, skeletons)

	enc := t.Encoder
	if enc == nil {
		enc = pbc.Nop{}
	}
	samples, err := t.residue(blob)
	if err != nil {
		return nil, err
	}
	if err := enc.Train(samples); err != nil {
		return nil, fmt.Errorf("train: secondary encoder: %w", err)
	}
	return enc.Serialize(blob), nil
}

// residue compresses the training corpus with a pbc-only codec over the
// freshly emitted dictionary. Each sample is a framed output: the mode tag
// followed by what the secondary encoder sees at compression time (pattern
// id and filler stream, or the raw record).
func (t *Trainer) residue(blob []byte) ([][]byte, error) {
	codec := pbc.NewCodec(nil)
	if err := codec.LoadPatterns(blob); err != nil {
		return nil, fmt.Errorf("train: reloading emitted patterns: %w", err)
	}
	samples := make([][]byte, 0, len(t.records))
	for _, r := range t.records {
		out, err := codec.Compress(nil, r)
		if err != nil {
			return nil, fmt.Errorf("train: compressing residue: %w", err)
		}
		samples = append(samples, out)
	}
	return samples, nil
}

// dedup collapses byte-identical skeletons before the merge loop,
// accumulating record counts on the first occurrence so training is
// deterministic.
func (t *Trainer) dedup() {
	seen := make(map[string]*cluster, len(t.clusters))
	var out []*cluster
	for _, c := range t.clusters {
		if prev, ok := seen[string(c.pattern)]; ok {
			prev.records++
			continue
		}
		c.head = len(out)
		out = append(out, c)
		seen[string(c.pattern)] = c
	}
	t.clusters = out
}

// computeNearest fills every head's neighbour cache.
func (t *Trainer) computeNearest() {
	n := len(t.clusters)
	if t.Threads > 0 {
		var g errgroup.Group
		g.SetLimit(outerPoolSize)
		for i := 0; i < n-1; i++ {
			i := i
			g.Go(func() error {
				t.clusters[i].nearest = t.nearestOf(i, false)
				return nil
			})
		}
		g.Wait()
		return
	}
	for i := 0; i < n-1; i++ {
		t.clusters[i].nearest = t.nearestOf(i, false)
	}
}

// nearestOf scans heads with a larger index for the one with minimum MEL.
// headsOnly skips absorbed clusters; the initial pass runs before any merge
// so it scans everything.
func (t *Trainer) nearestOf(i int, headsOnly bool) neighbor {
	n := len(t.clusters)
	best := neighbor{value: melInf, partner: -1}
	if t.Threads > 0 {
		ci := t.clusters[i]
		ci.threshold.Store(melInf)
		vals := make([]int, n)
		var g errgroup.Group
		g.SetLimit(t.Threads)
		for j := i + 1; j < n; j++ {
			if headsOnly && t.clusters[j].head != j {
				continue
			}
			j := j
			g.Go(func() error {
				vals[j] = t.pairMELAtomic(i, j)
				return nil
			})
		}
		g.Wait()
		for j := i + 1; j < n; j++ {
			if headsOnly && t.clusters[j].head != j {
				continue
			}
			if vals[j] < best.value {
				best = neighbor{value: vals[j], partner: j}
			}
		}
		return best
	}
	for j := i + 1; j < n; j++ {
		if headsOnly && t.clusters[j].head != j {
			continue
		}
		if v := t.pairMEL(i, j, best.value); v < best.value {
			best = neighbor{value: v, partner: j}
		}
	}
	return best
}

// pairMEL computes MEL between heads i and j with a fixed threshold.
func (t *Trainer) pairMEL(i, j, threshold int) int {
	ci, cj := t.clusters[i], t.clusters[j]
	if pruned(ci, cj, threshold) {
		return melInf
	}
	return minEncodingLength(ci.pattern, cj.pattern, ci.records, cj.records,
		func() int { return threshold })
}

// pairMELAtomic computes MEL between heads i and j against cluster i's
// monotone threshold, lowering it when the pair improves on it. Concurrent
// workers may observe stale-but-valid bounds.
func (t *Trainer) pairMELAtomic(i, j int) int {
	ci, cj := t.clusters[i], t.clusters[j]
	if pruned(ci, cj, int(ci.threshold.Load())) {
		return melInf
	}
	v := minEncodingLength(ci.pattern, cj.pattern, ci.records, cj.records,
		func() int { return int(ci.threshold.Load()) })
	for {
		cur := ci.threshold.Load()
		if int64(v) >= cur || ci.threshold.CompareAndSwap(cur, int64(v)) {
			break
		}
	}
	return v
}

// closestPair returns the globally closest pair of heads, smallest index
// first on ties, or (-1, -1) when every cached value is infinite.
func (t *Trainer) closestPair() (int, int) {
	bestA, bestB, bestV := -1, -1, melInf
	for i := 0; i < len(t.clusters)-1; i++ {
		c := t.clusters[i]
		if c.head != i {
			continue
		}
		if c.nearest.value < bestV {
			bestA, bestB, bestV = i, c.nearest.partner, c.nearest.value
		}
	}
	return bestA, bestB
}

// merge folds head b into head a and repairs the neighbour caches. The
// cluster table is only written here, between fan-outs, so workers read it
// without locks.
func (t *Trainer) merge(a, b int) {
	ca, cb := t.clusters[a], t.clusters[b]
	cb.head = a

	merged, _ := mergePatterns(ca.pattern, cb.pattern, ca.records, cb.records)
	ca.pattern = merged
	ca.recount()
	ca.records += cb.records

	if t.Threads > 0 {
		var g errgroup.Group
		g.SetLimit(outerPoolSize)
		for i := 0; i < b; i++ {
			if t.clusters[i].head != i || i == a {
				continue
			}
			i := i
			g.Go(func() error {
				t.repairNearest(i, a, b)
				return nil
			})
		}
		g.Wait()
	} else {
		for i := 0; i < b; i++ {
			if t.clusters[i].head != i || i == a {
				continue
			}
			t.repairNearest(i, a, b)
		}
	}

	ca.nearest = t.nearestOf(a, true)
}

// repairNearest fixes head i's cache after a and b merged: a cache pointing
// at either merged cluster is recomputed from scratch; otherwise the merged
// cluster only needs probing when it sits in i's scan range, with i's
// current best as the cut-off.
func (t *Trainer) repairNearest(i, a, b int) {
	c := t.clusters[i]
	if c.nearest.partner == a || c.nearest.partner == b {
		c.nearest = t.nearestOf(i, true)
		return
	}
	if i < a {
		if v := t.pairMEL(i, a, c.nearest.value); v < c.nearest.value {
			c.nearest = neighbor{value: v, partner: a}
		}
	}
}

func (t *Trainer) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}
