package reservoir

import (
	"sync"

	"github.com/achilleasa/restir/types"
	"github.com/chewxy/math32"
)

// Number of independently locked table regions. Must be a power of 2.
const NumShards = 64

// Identifies a world-space cell: a quantized position plus the dominant
// axis (and sign) of the surface normal.
type CellKey struct {
	X, Y, Z int32
	Axis    uint8
}

// Build the cell key for a surface point.
func KeyFor(pos, normal types.Vec3, cellSize float32) CellKey {
	axis := normal.DominantAxis()
	face := uint8(axis * 2)
	if normal[axis] < 0 {
		face++
	}
	inv := 1.0 / cellSize
	return CellKey{
		X:    int32(math32.Floor(pos[0] * inv)),
		Y:    int32(math32.Floor(pos[1] * inv)),
		Z:    int32(math32.Floor(pos[2] * inv)),
		Axis: face,
	}
}

// 32-bit FNV-1a over the key fields.
func (k CellKey) Hash() uint32 {
	h := uint32(2166136261)
	for _, v := range [4]uint32{uint32(k.X), uint32(k.Y), uint32(k.Z), uint32(k.Axis)} {
		for i := 0; i < 4; i++ {
			h ^= (v >> (8 * uint(i))) & 0xff
			h *= 16777619
		}
	}
	return h
}

// A hash grid cell.
type Cell struct {
	Key       CellKey
	Reservoir Reservoir

	// The last frame in which pixels were binned into the cell.
	LastFrame uint32

	occupied bool
}

type shardLocks struct{ mu [NumShards]sync.Mutex }

func (sl *shardLocks) lock(idx int)   { sl.mu[idx&(NumShards-1)].Lock() }
func (sl *shardLocks) unlock(idx int) { sl.mu[idx&(NumShards-1)].Unlock() }

// A fixed capacity open addressing hash table of cells. The table is split
// into NumShards contiguous regions; a key only ever probes inside the
// region selected by its hash so concurrent lookups only contend on the
// shard lock of that region.
type HashGrid struct {
	cells     []Cell
	shardSize int
	locks     shardLocks
	live      [NumShards]int
}

// Create a hash grid with at least the requested capacity. The capacity is
// rounded up to a multiple of NumShards.
func NewHashGrid(capacity int) *HashGrid {
	if capacity < NumShards {
		capacity = NumShards
	}
	shardSize := (capacity + NumShards - 1) / NumShards
	return &HashGrid{
		cells:     make([]Cell, shardSize*NumShards),
		shardSize: shardSize,
	}
}

// Get the total number of cell slots.
func (g *HashGrid) Capacity() int {
	return len(g.cells)
}

// Get the number of occupied cells.
func (g *HashGrid) Len() int {
	total := 0
	for shard := 0; shard < NumShards; shard++ {
		g.locks.lock(shard)
		total += g.live[shard]
		g.locks.unlock(shard)
	}
	return total
}

// Find or allocate the cell for key and mark it as touched in frame.
// Returns the cell index or false if the key's shard is full. Safe for
// concurrent use.
func (g *HashGrid) Acquire(key CellKey, frame uint32) (int, bool) {
	hash := key.Hash()
	shard := int(hash >> 26)
	base := shard * g.shardSize
	start := int(hash % uint32(g.shardSize))

	g.locks.lock(shard)
	defer g.locks.unlock(shard)

	for probe := 0; probe < g.shardSize; probe++ {
		index := base + (start+probe)%g.shardSize
		cell := &g.cells[index]
		if !cell.occupied {
			*cell = Cell{Key: key, LastFrame: frame, occupied: true}
			g.live[shard]++
			return index, true
		}
		if cell.Key == key {
			cell.LastFrame = frame
			return index, true
		}
	}
	return -1, false
}

// Look up the cell for key without allocating it.
func (g *HashGrid) Lookup(key CellKey) (int, bool) {
	hash := key.Hash()
	shard := int(hash >> 26)
	base := shard * g.shardSize
	start := int(hash % uint32(g.shardSize))

	g.locks.lock(shard)
	defer g.locks.unlock(shard)

	for probe := 0; probe < g.shardSize; probe++ {
		index := base + (start+probe)%g.shardSize
		cell := &g.cells[index]
		if !cell.occupied {
			return -1, false
		}
		if cell.Key == key {
			return index, true
		}
	}
	return -1, false
}

// Get the cell at index. Callers must ensure no concurrent Acquire calls
// target the same shard while they mutate the cell.
func (g *HashGrid) Cell(index int) *Cell {
	return &g.cells[index]
}

// Remove cells that were not touched during the last maxAge frames and
// return the number of evicted cells. Surviving cells are rehashed so that
// probe chains stay intact.
func (g *HashGrid) Evict(frame, maxAge uint32) int {
	evicted := 0
	survivors := make([]Cell, 0, g.shardSize)
	for shard := 0; shard < NumShards; shard++ {
		g.locks.lock(shard)
		region := g.cells[shard*g.shardSize : (shard+1)*g.shardSize]

		survivors = survivors[:0]
		for idx := range region {
			cell := &region[idx]
			if !cell.occupied {
				continue
			}
			if frame > cell.LastFrame && frame-cell.LastFrame > maxAge {
				evicted++
				continue
			}
			survivors = append(survivors, *cell)
		}

		if len(survivors) != g.live[shard] {
			for idx := range region {
				region[idx] = Cell{}
			}
			for _, cell := range survivors {
				start := int(cell.Key.Hash() % uint32(g.shardSize))
				for probe := 0; probe < g.shardSize; probe++ {
					slot := &region[(start+probe)%g.shardSize]
					if !slot.occupied {
						*slot = cell
						break
					}
				}
			}
			g.live[shard] = len(survivors)
		}
		g.locks.unlock(shard)
	}
	return evicted
}

// Remove all cells.
func (g *HashGrid) Reset() {
	for shard := 0; shard < NumShards; shard++ {
		g.locks.lock(shard)
		region := g.cells[shard*g.shardSize : (shard+1)*g.shardSize]
		for idx := range region {
			region[idx] = Cell{}
		}
		g.live[shard] = 0
		g.locks.unlock(shard)
	}
}

// Returns true if the cell slot holds a live cell.
func (c *Cell) Occupied() bool {
	return c.occupied
}
