package chess

import "fmt"

// Move encodes a chess move in 16 bits:
// bits 0-5:   from square (0-63)
// bits 6-11:  to square (0-63)
// bits 12-15: flag (quiet, double-push, castle, capture, en-passant, promotion x4, promotion-capture x4)
type Move uint16

// Move flags, drawn from {quiet, double-push, king-castle, queen-castle,
// capture, en-passant, 4x promotion, 4x promotion-with-capture}.
const (
	FlagQuiet Move = iota
	FlagDoublePush
	FlagKingCastle
	FlagQueenCastle
	FlagCapture
	FlagEnPassant
	_
	_
	FlagPromoKnight
	FlagPromoBishop
	FlagPromoRook
	FlagPromoQueen
	FlagPromoCaptureKnight
	FlagPromoCaptureBishop
	FlagPromoCaptureRook
	FlagPromoCaptureQueen
)

// NoMove represents an invalid or null move.
const NoMove Move = 0

func encode(from, to Square, flag Move) Move {
	return Move(from) | Move(to)<<6 | flag<<12
}

// NewMove creates a quiet move.
func NewMove(from, to Square) Move {
	return encode(from, to, FlagQuiet)
}

// NewCapture creates a plain (non-en-passant, non-promotion) capture.
func NewCapture(from, to Square) Move {
	return encode(from, to, FlagCapture)
}

// NewDoublePush creates a pawn double-push move.
func NewDoublePush(from, to Square) Move {
	return encode(from, to, FlagDoublePush)
}

// NewPromotion creates a non-capturing promotion move.
func NewPromotion(from, to Square, promo PieceType) Move {
	return encode(from, to, promoFlag(promo, false))
}

// NewPromotionCapture creates a capturing promotion move.
func NewPromotionCapture(from, to Square, promo PieceType) Move {
	return encode(from, to, promoFlag(promo, true))
}

func promoFlag(promo PieceType, capture bool) Move {
	var base Move
	switch promo {
	case Knight:
		base = FlagPromoKnight
	case Bishop:
		base = FlagPromoBishop
	case Rook:
		base = FlagPromoRook
	default:
		base = FlagPromoQueen
	}
	if capture {
		return base + 4
	}
	return base
}

// NewEnPassant creates an en passant capture move.
func NewEnPassant(from, to Square) Move {
	return encode(from, to, FlagEnPassant)
}

// NewKingCastle creates a kingside castling move, encoded king square -> king destination square.
func NewKingCastle(from, to Square) Move {
	return encode(from, to, FlagKingCastle)
}

// NewQueenCastle creates a queenside castling move.
func NewQueenCastle(from, to Square) Move {
	return encode(from, to, FlagQueenCastle)
}

// From returns the origin square.
func (m Move) From() Square {
	return Square(m & 0x3F)
}

// To returns the destination square.
func (m Move) To() Square {
	return Square((m >> 6) & 0x3F)
}

// Flag returns the move's 4-bit flag.
func (m Move) Flag() Move {
	return (m >> 12) & 0xF
}

// Promotion returns the promotion piece type. Only valid if IsPromotion().
func (m Move) Promotion() PieceType {
	flag := m.Flag()
	if flag >= FlagPromoCaptureKnight {
		flag -= 4
	}
	switch flag {
	case FlagPromoKnight:
		return Knight
	case FlagPromoBishop:
		return Bishop
	case FlagPromoRook:
		return Rook
	default:
		return Queen
	}
}

// IsPromotion returns true if this move promotes a pawn.
func (m Move) IsPromotion() bool {
	return m.Flag() >= FlagPromoKnight
}

// IsCastling returns true if this is a castling move (either side).
func (m Move) IsCastling() bool {
	f := m.Flag()
	return f == FlagKingCastle || f == FlagQueenCastle
}

// IsKingsideCastle returns true for a kingside castle.
func (m Move) IsKingsideCastle() bool {
	return m.Flag() == FlagKingCastle
}

// IsQueensideCastle returns true for a queenside castle.
func (m Move) IsQueensideCastle() bool {
	return m.Flag() == FlagQueenCastle
}

// IsEnPassant returns true if this is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m.Flag() == FlagEnPassant
}

// IsDoublePush returns true if this is a pawn double push.
func (m Move) IsDoublePush() bool {
	return m.Flag() == FlagDoublePush
}

// IsCapture returns true if the move's flag marks it as any kind of capture.
// Unlike the teacher's board-probing IsCapture, this is a pure function of
// the encoded move, matching the spec's flag-carries-capture-info design.
func (m Move) IsCapture() bool {
	f := m.Flag()
	return f == FlagCapture || f == FlagEnPassant || f >= FlagPromoCaptureKnight
}

// IsQuiet returns true if this is not a capture or promotion.
func (m Move) IsQuiet() bool {
	return !m.IsCapture() && !m.IsPromotion()
}

// String returns the long-algebraic UCI format of the move (e.g. "e2e4",
// "e7e8q"). Castling always uses the standard-chess king-destination
// convention, in Chess960 mode too; there is no king-takes-rook
// rendering.
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}

	s := m.From().String() + m.To().String()

	if m.IsPromotion() {
		promoChars := []byte{'n', 'b', 'r', 'q'}
		idx := m.Promotion() - Knight
		s += string(promoChars[idx])
	}

	return s
}

// ParseMove parses a UCI long-algebraic move string against pos, filling in
// the correct flag by inspecting the position. Returns an error for strings
// that are not well-formed; callers (see uci package) silently skip moves
// that fail to parse or do not match a legal move, per the spec's "illegal
// move string in position moves" error policy.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}

	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}
	pt := piece.Type()
	captures := !pos.IsEmpty(to)

	if len(s) == 5 {
		var promo PieceType
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		if captures {
			return NewPromotionCapture(from, to, promo), nil
		}
		return NewPromotion(from, to, promo), nil
	}

	if pt == King {
		if m, ok := pos.Castling.decodeCastle(pos.SideToMove, from, to); ok {
			return m, nil
		}
	}

	if pt == Pawn {
		if to == pos.EnPassant && pos.EnPassant != NoSquare {
			return NewEnPassant(from, to), nil
		}
		if abs(int(to)-int(from)) == 16 {
			return NewDoublePush(from, to), nil
		}
	}

	if captures {
		return NewCapture(from, to), nil
	}
	return NewMove(from, to), nil
}

// MoveList is a fixed-size list of moves to avoid allocations.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add adds a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Set sets the move at index i.
func (ml *MoveList) Set(i int, m Move) {
	ml.moves[i] = m
}

// Swap swaps two moves in the list.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear clears the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains returns true if the list contains the move.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the moves as a slice.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}

// UndoInfo stores information needed to undo a move.
type UndoInfo struct {
	CapturedPiece     Piece
	CastlingRights    CastlingRights
	EnPassant         Square
	HalfMoveClock     int
	Hash              uint64
	PawnKey           uint64
	Checkers          Bitboard
	RepetitionBoundary int // window boundary before this move's Repetition.Push
	Valid             bool // true if the move was actually applied
}
