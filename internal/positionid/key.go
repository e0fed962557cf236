package positionid

// Key is a compact fixed-size form of a board: 4 bits per slot, used for
// hashing and fast comparison.
type Key struct {
	Data [7]uint32
}

// MakeKey packs the board into a Key. Points 0-23 of player 1 fill words
// 0-2, player 0 fills words 3-5, and both bars share word 6.
func MakeKey(board Board) Key {
	var key Key
	for word := 0; word < 3; word++ {
		for nibble := 0; nibble < 8; nibble++ {
			point := word*8 + nibble
			shift := uint(nibble * 4)
			key.Data[word] |= uint32(board[1][point]) << shift
			key.Data[word+3] |= uint32(board[0][point]) << shift
		}
	}
	key.Data[6] = uint32(board[0][BarSlot]) | uint32(board[1][BarSlot])<<4
	return key
}

// Board unpacks the key.
func (k Key) Board() Board {
	var board Board
	for word := 0; word < 3; word++ {
		for nibble := 0; nibble < 8; nibble++ {
			point := word*8 + nibble
			shift := uint(nibble * 4)
			board[1][point] = uint8(k.Data[word] >> shift & 0x0f)
			board[0][point] = uint8(k.Data[word+3] >> shift & 0x0f)
		}
	}
	board[0][BarSlot] = uint8(k.Data[6] & 0x0f)
	board[1][BarSlot] = uint8(k.Data[6] >> 4 & 0x0f)
	return board
}

// Hash mixes the key words with the murmur3 finalizer.
func (k Key) Hash() uint32 {
	h := uint32(0)
	for _, w := range k.Data {
		h ^= w
		h ^= h >> 16
		h *= 0x85ebca6b
		h ^= h >> 13
		h *= 0xc2b2ae35
		h ^= h >> 16
	}
	return h
}
