package page

import (
	"encoding/binary"

	"corestore/internal/types"
)

// Header page and block page for the persistent linear-probing hash index
// (spec.md §4.4, C5). Grounded on
// original_source/src/storage/page/hash_table_block_page.cpp for the
// occupied/readable bitmap scheme, generalized from BusTub's C++ template
// parameter on KeyType/ValueType/KeyComparator into Go generics over a
// pair of fixed-size Codec implementations, since Go has no template
// instantiation to lean on for a key type chosen at index-creation time.

const (
	hashHeaderOffsetNumBlocks = 8
	hashHeaderBlocksStart     = 12
)

// HeaderPage records how many buckets the hash index has and the block
// page id backing each one.
type HeaderPage struct {
	*Page
}

func WrapHeaderPage(p *Page) *HeaderPage { return &HeaderPage{Page: p} }

func (h *HeaderPage) Init() {
	h.putNumBlocks(0)
}

func (h *HeaderPage) NumBlocks() uint32 {
	return binary.LittleEndian.Uint32(h.Data[hashHeaderOffsetNumBlocks : hashHeaderOffsetNumBlocks+4])
}

func (h *HeaderPage) putNumBlocks(n uint32) {
	binary.LittleEndian.PutUint32(h.Data[hashHeaderOffsetNumBlocks:hashHeaderOffsetNumBlocks+4], n)
}

// MaxBlocks is how many block page ids fit after the fixed header.
func (h *HeaderPage) MaxBlocks() int {
	return (Size - hashHeaderBlocksStart) / 4
}

func (h *HeaderPage) blockOffset(i uint32) int {
	return hashHeaderBlocksStart + int(i)*4
}

func (h *HeaderPage) BlockPageID(i uint32) types.PageID {
	o := h.blockOffset(i)
	return types.PageID(binary.LittleEndian.Uint32(h.Data[o : o+4]))
}

func (h *HeaderPage) SetBlockPageID(i uint32, id types.PageID) {
	o := h.blockOffset(i)
	binary.LittleEndian.PutUint32(h.Data[o:o+4], uint32(id))
}

// AddBlockPageID appends a new block id, returning its index and false if
// the header page has no room for another one.
func (h *HeaderPage) AddBlockPageID(id types.PageID) (uint32, bool) {
	n := h.NumBlocks()
	if int(n) >= h.MaxBlocks() {
		return 0, false
	}
	h.SetBlockPageID(n, id)
	h.putNumBlocks(n + 1)
	return n, true
}

// Codec is implemented by fixed-size encoders for hash table keys and
// values, standing in for BusTub's template-instantiated KeyType/ValueType
// (spec.md §9's note that "slot comparison uses an externally supplied key
// comparator").
type Codec[T any] interface {
	Size() int
	Encode(v T, buf []byte)
	Decode(buf []byte) T
}

// BlockPage is a fixed-capacity array of (key, value) cells plus two
// parallel bitmaps: occupied (a probe sequence ever placed something in
// this slot) and readable (the slot currently holds a live entry).
// Separating the two lets Remove clear an entry without breaking probe
// chains that pass through its slot, exactly as
// hash_table_block_page.cpp's IsOccupied/IsReadable pair does.
type BlockPage[K any, V any] struct {
	*Page
	keyCodec Codec[K]
	valCodec V0Codec[V]
	cellSize int
	capacity int
	occOff   int
	readOff  int
	cellsOff int
}

// V0Codec is an alias kept only to give BlockPage's value codec field a
// distinct name from its key codec in godoc; both are Codec[V].
type V0Codec[V any] = Codec[V]

// BlockCapacity computes the largest slot count that fits a page of the
// given cell size alongside its two bitmaps, iterating downward from an
// optimistic estimate rather than solving the (off-by-one prone) closed
// form directly.
func BlockCapacity(cellSize int) int {
	n := (Size - HeaderSize) * 8 / (8*cellSize + 2)
	for n > 0 {
		bitmapBytes := (n + 7) / 8
		if HeaderSize+2*bitmapBytes+n*cellSize <= Size {
			return n
		}
		n--
	}
	return 0
}

// NewBlockPage views p as a block page with the given key/value codecs,
// computing capacity and bitmap/cell offsets from their sizes.
func NewBlockPage[K any, V any](p *Page, keyCodec Codec[K], valCodec Codec[V]) *BlockPage[K, V] {
	cellSize := keyCodec.Size() + valCodec.Size()
	capacity := BlockCapacity(cellSize)
	bitmapBytes := (capacity + 7) / 8
	return &BlockPage[K, V]{
		Page:     p,
		keyCodec: keyCodec,
		valCodec: valCodec,
		cellSize: cellSize,
		capacity: capacity,
		occOff:   HeaderSize,
		readOff:  HeaderSize + bitmapBytes,
		cellsOff: HeaderSize + 2*bitmapBytes,
	}
}

func (b *BlockPage[K, V]) Capacity() int { return b.capacity }

func getBit(data []byte, base, idx int) bool {
	byteIdx := base + idx/8
	bit := uint(idx % 8)
	return data[byteIdx]&(1<<bit) != 0
}

func setBit(data []byte, base, idx int, v bool) {
	byteIdx := base + idx/8
	bit := byte(1 << uint(idx%8))
	if v {
		data[byteIdx] |= bit
	} else {
		data[byteIdx] &^= bit
	}
}

func (b *BlockPage[K, V]) IsOccupied(slot uint32) bool {
	return getBit(b.Data, b.occOff, int(slot))
}

func (b *BlockPage[K, V]) IsReadable(slot uint32) bool {
	return getBit(b.Data, b.readOff, int(slot))
}

func (b *BlockPage[K, V]) cellOffset(slot uint32) int {
	return b.cellsOff + int(slot)*b.cellSize
}

func (b *BlockPage[K, V]) KeyAt(slot uint32) K {
	o := b.cellOffset(slot)
	return b.keyCodec.Decode(b.Data[o : o+b.keyCodec.Size()])
}

func (b *BlockPage[K, V]) ValueAt(slot uint32) V {
	o := b.cellOffset(slot) + b.keyCodec.Size()
	return b.valCodec.Decode(b.Data[o : o+b.valCodec.Size()])
}

// Insert writes key/value into slot and marks it occupied and readable.
// Callers (internal/hash) are responsible for choosing an unreadable slot
// via linear probing before calling this.
func (b *BlockPage[K, V]) Insert(slot uint32, key K, value V) {
	o := b.cellOffset(slot)
	b.keyCodec.Encode(key, b.Data[o:o+b.keyCodec.Size()])
	b.valCodec.Encode(value, b.Data[o+b.keyCodec.Size():o+b.cellSize])
	setBit(b.Data, b.occOff, int(slot), true)
	setBit(b.Data, b.readOff, int(slot), true)
}

// Remove clears a slot's readable bit only; occupied stays set so probe
// sequences that skipped past it on insert remain correct.
func (b *BlockPage[K, V]) Remove(slot uint32) {
	setBit(b.Data, b.readOff, int(slot), false)
}
