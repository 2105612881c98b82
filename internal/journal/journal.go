// Package journal keeps a local history of sweeps: one run record per sweep
// plus the ownership records written during it, indexed in memory by
// resource identity.
package journal

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/tagsweep/internal/sweep"
	"github.com/yairfalse/tagsweep/pkg/resource"
)

// Bucket names in bbolt
var (
	bucketRuns         = []byte("runs")
	bucketObservations = []byte("observations")
	bucketMeta         = []byte("meta")

	keyCurrentRevision = []byte("current_revision")
)

// Run is one recorded sweep.
type Run struct {
	Revision int64         `json:"revision"`
	Report   *sweep.Report `json:"report"`
	Written  int           `json:"written"`
}

// Observation is one ownership record written during a run.
type Observation struct {
	Revision   int64           `json:"revision"`
	Record     resource.Record `json:"record"`
	ObservedAt time.Time       `json:"observed_at"`
}

// OwnershipState tracks the latest known owner of one resource identity.
// FirstSeenRev is the run the current owner was first recorded in.
type OwnershipState struct {
	Record       resource.Record
	FirstSeenRev int64
	LastSeenRev  int64
}

// Journal is a bbolt-backed sweep history.
type Journal struct {
	mu sync.RWMutex

	// In-memory index keyed by resource identity (type and ID)
	index *btree.BTreeG[*OwnershipState]

	db         *bbolt.DB
	currentRev int64
	pending    []Observation
	now        func() time.Time
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketRuns, bucketObservations, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal: %w", err)
	}

	j := &Journal{
		index: btree.NewG[*OwnershipState](32, func(a, b *OwnershipState) bool {
			return identityKey(a.Record) < identityKey(b.Record)
		}),
		db:  db,
		now: time.Now,
	}

	if err := j.load(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return j, nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Track wraps next so that every successful upsert is remembered for the
// next Record call.
func (j *Journal) Track(next sweep.Upserter) sweep.Upserter {
	return &tracker{next: next, journal: j}
}

type tracker struct {
	next    sweep.Upserter
	journal *Journal
}

func (t *tracker) Upsert(ctx context.Context, r resource.Record) error {
	if err := t.next.Upsert(ctx, r); err != nil {
		return err
	}
	t.journal.observe(r)
	return nil
}

func (j *Journal) observe(r resource.Record) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pending = append(j.pending, Observation{Record: r, ObservedAt: j.now().UTC()})
}

// Record stores report and the observations tracked since the previous call
// as one run, and returns its revision.
func (j *Journal) Record(ctx context.Context, report *sweep.Report) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rev := j.currentRev + 1
	obs := j.pending
	for i := range obs {
		obs[i].Revision = rev
	}

	run := Run{Revision: rev, Report: report, Written: len(obs)}
	err := j.db.Update(func(tx *bbolt.Tx) error {
		value, err := json.Marshal(run)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketRuns).Put(int64ToBytes(rev), value); err != nil {
			return err
		}

		bucket := tx.Bucket(bucketObservations)
		for _, o := range obs {
			value, err := json.Marshal(o)
			if err != nil {
				return err
			}
			if err := bucket.Put(makeObservationKey(rev, o.Record.Key()), value); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketMeta).Put(keyCurrentRevision, int64ToBytes(rev))
	})
	if err != nil {
		return 0, fmt.Errorf("record run %d: %w", rev, err)
	}

	j.currentRev = rev
	j.pending = nil
	for _, o := range obs {
		j.updateIndex(o)
	}

	return rev, nil
}

// Runs returns up to limit runs, newest first. A limit of 0 returns all.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("decode run %d: %w", bytesToInt64(k), err)
			}
			runs = append(runs, run)
			if limit > 0 && len(runs) == limit {
				break
			}
		}
		return nil
	})
	return runs, err
}

// Observations returns the records written during run rev.
func (j *Journal) Observations(rev int64) ([]Observation, error) {
	var out []Observation
	prefix := int64ToBytes(rev)
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketObservations).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var o Observation
			if err := json.Unmarshal(v, &o); err != nil {
				return err
			}
			out = append(out, o)
		}
		return nil
	})
	return out, err
}

// ByAlias returns the latest state of every resource owned by alias, ordered
// by identity.
func (j *Journal) ByAlias(alias string) []OwnershipState {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var results []OwnershipState
	j.index.Ascend(func(state *OwnershipState) bool {
		if state.Record.Alias == alias {
			results = append(results, *state)
		}
		return true
	})
	return results
}

// Len returns the number of distinct resource identities tracked.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.index.Len()
}

// Compact removes runs and observations older than the newest keepRuns runs
// and rebuilds the index.
func (j *Journal) Compact(keepRuns int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.currentRev - keepRuns
	if cutoff <= 0 {
		return nil
	}

	err := j.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRuns, bucketObservations} {
			bucket := tx.Bucket(name)
			c := bucket.Cursor()

			var toDelete [][]byte
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if bytesToInt64(k[:8]) > cutoff {
					break
				}
				toDelete = append(toDelete, k)
			}

			for _, key := range toDelete {
				if err := bucket.Delete(key); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("compact: %w", err)
	}

	j.index.Clear(false)
	return j.rebuildIndex()
}

func (j *Journal) updateIndex(o Observation) {
	state, found := j.index.Get(&OwnershipState{Record: o.Record})
	if !found || state.Record.Alias != o.Record.Alias {
		state = &OwnershipState{Record: o.Record, FirstSeenRev: o.Revision}
	}
	state.Record = o.Record
	state.LastSeenRev = o.Revision
	j.index.ReplaceOrInsert(state)
}

func (j *Journal) load() error {
	err := j.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketMeta).Get(keyCurrentRevision); data != nil {
			j.currentRev = bytesToInt64(data)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load revision: %w", err)
	}
	return j.rebuildIndex()
}

func (j *Journal) rebuildIndex() error {
	return j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketObservations).ForEach(func(_, v []byte) error {
			var o Observation
			if err := json.Unmarshal(v, &o); err != nil {
				return fmt.Errorf("rebuild index: %w", err)
			}
			j.updateIndex(o)
			return nil
		})
	})
}

// identityKey identifies a resource regardless of its owner.
func identityKey(r resource.Record) string {
	return r.ResourceType + "|" + r.ResourceID
}

func makeObservationKey(rev int64, key string) []byte {
	return append(int64ToBytes(rev), key...)
}

// Revisions are stored big-endian so that cursor order is revision order.
func int64ToBytes(n int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

func bytesToInt64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
