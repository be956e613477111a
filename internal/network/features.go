// Package network implements the quantised policy and value networks
// (C2) that the search consults at leaves: a policy head producing a
// prior logit per legal move, and a value head producing a win/draw/loss
// triple. Both are evaluated fresh per leaf — spec.md's non-goal of
// multi-position batching means there is no incremental accumulator
// threaded across moves the way a classical-search NNUE keeps one.
//
// Grounded on sfnnue/{nnue_common,nnue_feature_transformer}.go (teacher,
// quantised feature-transformer idiom) and
// _examples/original_source/src/{chess/value.rs,chess/policy.rs,
// games/chess/{value,policy}.rs} for the architecture shapes.
package network

import "github.com/arborchess/arbor/internal/chess"

// NumSquarePieces is the size of a single-perspective piece-square
// feature block: 6 piece types * 2 colors * 64 squares.
const NumSquarePieces = 768

// NumValueFeatures is the value network's total input width: the base
// piece-square block plus threatened/defended overlay buckets (shifted
// by NumSquarePieces for "threatened by opponent" and again for
// "defended by us"), per spec.md §4.2.
const NumValueFeatures = NumSquarePieces * 4

// perspectiveSquare flips sq's rank for Black (the file is unchanged) so
// the feature index is always expressed from the side-to-move's
// perspective facing "up the board", matching the teacher's/Monty's flip
// convention.
func perspectiveSquare(sq chess.Square, us chess.Color) chess.Square {
	if us == chess.White {
		return sq
	}
	return sq ^ 0x38 // flip rank, keep file
}

// flipMask returns the XOR mask the policy network applies to every move's
// from/to squares before indexing its subnet table: bit 0x38 flips the rank
// when black is to move (so both sides see the board from their own side),
// and bit 0x07 additionally mirrors the file when the side-to-move's king
// sits on the kingside half, halving the subnet table the way Monty's
// "flip_val" does.
func flipMask(pos *chess.Position) uint8 {
	var mask uint8
	if pos.SideToMove == chess.Black {
		mask |= 0x38
	}
	kingSq := pos.KingSquare[pos.SideToMove]
	if int(kingSq.File()) >= 4 {
		mask |= 0x07
	}
	return mask
}

// squareFeature returns the base (un-overlaid) piece-square feature
// index for a piece of type pt/color c sitting on sq, from the
// perspective of side `us`.
func squareFeature(us chess.Color, pt chess.PieceType, c chess.Color, sq chess.Square) int {
	relSq := perspectiveSquare(sq, us)
	relColor := 0
	if c != us {
		relColor = 1
	}
	return relColor*384 + int(pt)*64 + int(relSq)
}

// threatenedDefended computes, for the side-to-move's perspective, the
// set of squares threatened by the opponent and the set defended by us —
// the two bits that shift a base piece-square feature into the overlay
// buckets described in spec.md §4.2.
func threatenedDefended(pos *chess.Position) (threatened, defended chess.Bitboard) {
	us := pos.SideToMove
	them := us.Other()
	occ := pos.AllOccupied

	threatened = attackSetFor(pos, them, occ)
	defended = attackSetFor(pos, us, occ)
	return
}

// attackSetFor returns every square attacked by any piece of color c,
// used both for the value network's threat/defense overlay and for the
// policy network's from/to threat bit.
func attackSetFor(pos *chess.Position, c chess.Color, occ chess.Bitboard) chess.Bitboard {
	var set chess.Bitboard

	pawns := pos.Pieces[c][chess.Pawn]
	for pawns != 0 {
		sq := pawns.PopLSB()
		set |= chess.PawnAttacks(sq, c)
	}
	knights := pos.Pieces[c][chess.Knight]
	for knights != 0 {
		set |= chess.KnightAttacks(knights.PopLSB())
	}
	bishops := pos.Pieces[c][chess.Bishop] | pos.Pieces[c][chess.Queen]
	for bishops != 0 {
		set |= chess.BishopAttacks(bishops.PopLSB(), occ)
	}
	rooks := pos.Pieces[c][chess.Rook] | pos.Pieces[c][chess.Queen]
	for rooks != 0 {
		set |= chess.RookAttacks(rooks.PopLSB(), occ)
	}
	kings := pos.Pieces[c][chess.King]
	for kings != 0 {
		set |= chess.KingAttacks(kings.PopLSB())
	}
	return set
}

// valueFeatures returns the full list of active value-network feature
// indices for the position, from the side-to-move's perspective.
func valueFeatures(pos *chess.Position) []int32 {
	us := pos.SideToMove
	threatened, defended := threatenedDefended(pos)

	feats := make([]int32, 0, 32)
	for c := chess.White; c <= chess.Black; c++ {
		for pt := chess.Pawn; pt <= chess.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				idx := squareFeature(us, pt, c, sq)

				bucket := 0
				if threatened&chess.SquareBB(sq) != 0 {
					bucket += NumSquarePieces
				}
				if defended&chess.SquareBB(sq) != 0 {
					bucket += NumSquarePieces * 2
				}
				feats = append(feats, int32(idx+bucket))
			}
		}
	}
	return feats
}
