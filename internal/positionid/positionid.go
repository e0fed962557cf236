// Package positionid encodes backgammon boards as GNU Backgammon position IDs.
//
// A position ID is a 14-character base64 string over an 80-bit key. Each
// player's 25 slots (24 points then the bar) are written as a run of 1-bits,
// one per checker, terminated by a 0-bit. Player 0 is written first.
package positionid

import (
	"errors"
	"fmt"
)

const (
	// IDLength is the length of a position ID string.
	IDLength = 14

	// MaxCheckers is the number of checkers each player owns.
	MaxCheckers = 15

	// BarSlot is the board index holding a player's bar checkers.
	BarSlot = 24

	keyBytes = 10
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Board is gnubg's TanBoard: [player][slot], each player counting points
// 0-23 from its own side with slot 24 as the bar. Player 1 is on roll.
type Board [2][25]uint8

var (
	// ErrInvalidPositionID is returned when a string is not a position ID.
	ErrInvalidPositionID = errors.New("invalid position ID")

	// ErrInvalidBoard is returned when a board breaks the checker rules.
	ErrInvalidBoard = errors.New("invalid board")
)

// Encode returns the position ID of the board.
func Encode(board Board) string {
	var key [keyBytes]uint8
	bit := 0
	for player := 0; player < 2; player++ {
		for slot := 0; slot < 25; slot++ {
			for n := uint8(0); n < board[player][slot]; n++ {
				key[bit/8] |= 1 << (bit % 8)
				bit++
			}
			bit++
		}
	}

	id := make([]byte, IDLength)
	for group := 0; group < 3; group++ {
		b := key[group*3 : group*3+3]
		id[group*4] = base64Chars[b[0]>>2]
		id[group*4+1] = base64Chars[(b[0]&0x03)<<4|b[1]>>4]
		id[group*4+2] = base64Chars[(b[1]&0x0f)<<2|b[2]>>6]
		id[group*4+3] = base64Chars[b[2]&0x3f]
	}
	id[12] = base64Chars[key[9]>>2]
	id[13] = base64Chars[(key[9]&0x03)<<4]

	return string(id)
}

// Decode parses a position ID. Anything after the first 14 characters is
// ignored, so "ID:matchID" strings need trimming by the caller only when
// the match part must be validated.
func Decode(id string) (Board, error) {
	var board Board
	if len(id) < IDLength {
		return board, fmt.Errorf("%w: %q is shorter than %d characters", ErrInvalidPositionID, id, IDLength)
	}

	var sextets [IDLength]uint8
	for i := 0; i < IDLength; i++ {
		v, ok := decodeChar(id[i])
		if !ok {
			return board, fmt.Errorf("%w: bad character %q", ErrInvalidPositionID, id[i])
		}
		sextets[i] = v
	}

	var key [keyBytes]uint8
	for group := 0; group < 3; group++ {
		s := sextets[group*4 : group*4+4]
		key[group*3] = s[0]<<2 | s[1]>>4
		key[group*3+1] = s[1]<<4 | s[2]>>2
		key[group*3+2] = s[2]<<6 | s[3]
	}
	key[9] = sextets[12]<<2 | sextets[13]>>4

	player, slot := 0, 0
	for bit := 0; bit < keyBytes*8 && player < 2; bit++ {
		if key[bit/8]&(1<<(bit%8)) == 0 {
			slot++
			if slot == 25 {
				player++
				slot = 0
			}
			continue
		}
		if board[player][slot] == MaxCheckers {
			return board, fmt.Errorf("%w: too many checkers", ErrInvalidPositionID)
		}
		board[player][slot]++
	}

	if err := Check(board); err != nil {
		return board, fmt.Errorf("%w: %w", ErrInvalidPositionID, err)
	}
	return board, nil
}

func decodeChar(ch byte) (uint8, bool) {
	switch {
	case ch >= 'A' && ch <= 'Z':
		return ch - 'A', true
	case ch >= 'a' && ch <= 'z':
		return ch - 'a' + 26, true
	case ch >= '0' && ch <= '9':
		return ch - '0' + 52, true
	case ch == '+':
		return 62, true
	case ch == '/':
		return 63, true
	}
	return 0, false
}

// Check validates a board the way gnubg does: no player with more than
// 15 checkers, no point held by both players, and not both players stuck
// on the bar against closed boards.
func Check(board Board) error {
	for player := 0; player < 2; player++ {
		total := 0
		for slot := 0; slot < 25; slot++ {
			total += int(board[player][slot])
		}
		if total > MaxCheckers {
			return fmt.Errorf("%w: player %d has %d checkers", ErrInvalidBoard, player, total)
		}
	}

	for i := 0; i < 24; i++ {
		if board[0][i] > 0 && board[1][23-i] > 0 {
			return fmt.Errorf("%w: point %d held by both players", ErrInvalidBoard, i+1)
		}
	}

	if board[0][BarSlot] == 0 || board[1][BarSlot] == 0 {
		return nil
	}
	for i := 0; i < 6; i++ {
		if board[0][i] < 2 || board[1][i] < 2 {
			return nil
		}
	}
	return fmt.Errorf("%w: both players on the bar against closed boards", ErrInvalidBoard)
}
