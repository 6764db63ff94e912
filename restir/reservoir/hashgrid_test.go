package reservoir

import (
	"sync"
	"testing"

	"github.com/achilleasa/restir/types"
)

func TestKeyFor(t *testing.T) {
	type spec struct {
		pos, normal types.Vec3
		cellSize    float32
		exp         CellKey
	}
	specs := []spec{
		{types.Vec3{0.1, 0.2, 0.3}, types.Vec3{0, 1, 0}, 0.25, CellKey{0, 0, 1, 2}},
		{types.Vec3{-0.1, 0.2, 0.3}, types.Vec3{0, -1, 0}, 0.25, CellKey{-1, 0, 1, 3}},
		{types.Vec3{1, 1, 1}, types.Vec3{0.2, 0.1, -0.9}, 0.5, CellKey{2, 2, 2, 5}},
		{types.Vec3{1, 1, 1}, types.Vec3{0.9, 0.1, 0.2}, 0.5, CellKey{2, 2, 2, 0}},
	}

	for index, s := range specs {
		if got := KeyFor(s.pos, s.normal, s.cellSize); got != s.exp {
			t.Fatalf("[spec %d] expected key %+v; got %+v", index, s.exp, got)
		}
	}
}

func TestHashGridConcurrentAcquire(t *testing.T) {
	grid := NewHashGrid(4096)

	const numKeys = 500
	const workers = 8
	indices := make([][]int, workers)

	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			indices[worker] = make([]int, numKeys)
			for k := 0; k < numKeys; k++ {
				// Each worker visits the keys in a different order
				key := CellKey{X: int32((k*7 + worker*13) % numKeys), Y: 1, Z: -2}
				index, ok := grid.Acquire(key, 1)
				if !ok {
					t.Errorf("expected key %+v to be allocated", key)
					return
				}
				indices[worker][key.X] = index
			}
		}(worker)
	}
	wg.Wait()

	if got := grid.Len(); got != numKeys {
		t.Fatalf("expected %d live cells; got %d", numKeys, got)
	}

	for k := 0; k < numKeys; k++ {
		for worker := 1; worker < workers; worker++ {
			if indices[worker][k] != indices[0][k] {
				t.Fatalf("expected key %d to map to the same cell for all workers", k)
			}
		}
		cell := grid.Cell(indices[0][k])
		if cell.Key.X != int32(k) || !cell.Occupied() {
			t.Fatalf("expected cell %d to hold key %d; got %+v", indices[0][k], k, cell.Key)
		}
	}
}

func TestHashGridEviction(t *testing.T) {
	grid := NewHashGrid(1024)

	for k := int32(0); k < 100; k++ {
		frame := uint32(1)
		if k%2 == 0 {
			frame = 10
		}
		index, ok := grid.Acquire(CellKey{X: k}, frame)
		if !ok {
			t.Fatalf("expected key %d to be allocated", k)
		}
		grid.Cell(index).Reservoir.M = uint32(k + 1)
	}

	if evicted := grid.Evict(12, 5); evicted != 50 {
		t.Fatalf("expected 50 cells to be evicted; got %d", evicted)
	}
	if got := grid.Len(); got != 50 {
		t.Fatalf("expected 50 live cells; got %d", got)
	}

	for k := int32(0); k < 100; k++ {
		index, found := grid.Lookup(CellKey{X: k})
		if found != (k%2 == 0) {
			t.Fatalf("expected lookup of key %d to return %t", k, k%2 == 0)
		}
		if found && grid.Cell(index).Reservoir.M != uint32(k+1) {
			t.Fatalf("expected surviving cell %d to keep its reservoir", k)
		}
	}

	grid.Reset()
	if got := grid.Len(); got != 0 {
		t.Fatalf("expected empty grid after reset; got %d cells", got)
	}
}

func TestHashGridFullShard(t *testing.T) {
	grid := NewHashGrid(NumShards)
	if grid.Capacity() != NumShards {
		t.Fatalf("expected capacity %d; got %d", NumShards, grid.Capacity())
	}

	// With one slot per shard, any two keys hashing to the same shard collide.
	seen := make(map[int]CellKey)
	for k := int32(0); k < 10000; k++ {
		key := CellKey{X: k}
		shard := int(key.Hash() >> 26)
		prev, exists := seen[shard]
		if !exists {
			seen[shard] = key
			if _, ok := grid.Acquire(key, 0); !ok {
				t.Fatalf("expected key %+v to be allocated", key)
			}
			continue
		}
		if _, ok := grid.Acquire(key, 0); ok {
			t.Fatalf("expected key %+v to be rejected by full shard holding %+v", key, prev)
		}
		return
	}
	t.Fatal("could not find two keys sharing a shard")
}
