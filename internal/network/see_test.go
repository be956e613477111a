package network

import (
	"testing"

	"github.com/arborchess/arbor/internal/chess"
)

func sq(t *testing.T, s string) chess.Square {
	t.Helper()
	out, err := chess.ParseSquare(s)
	if err != nil {
		t.Fatalf("ParseSquare(%q): %v", s, err)
	}
	return out
}

// A rook takes an undefended pawn: unambiguously winning, threshold 0.
func TestSEEWinningCaptureOfUndefendedPawn(t *testing.T) {
	pos, err := chess.ParseFEN("4k3/8/8/3p4/8/8/3R4/4K3 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	mov := chess.NewCapture(sq(t, "d2"), sq(t, "d5"))

	if !SEE(pos, mov, 0) {
		t.Fatalf("expected SEE(Rxd5, 0) to be winning")
	}
}

// A queen takes a pawn defended by another pawn: losing the queen for a
// pawn is a clearly losing exchange.
func TestSEELosingCaptureOfDefendedPawn(t *testing.T) {
	pos, err := chess.ParseFEN("4k3/8/2p5/3p4/8/6Q1/8/4K3 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	mov := chess.NewCapture(sq(t, "g3"), sq(t, "d5"))

	if SEE(pos, mov, 1) {
		t.Fatalf("expected SEE(Qxd5 defended by pawn, threshold=1) to fail")
	}
}

// An equal trade (pawn takes pawn, recaptured by pawn) nets zero, so
// SEE at threshold 0 should hold but threshold 1 should not.
func TestSEEEqualPawnTrade(t *testing.T) {
	pos, err := chess.ParseFEN("4k3/8/2p5/3p4/4P3/8/8/4K3 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	mov := chess.NewCapture(sq(t, "e4"), sq(t, "d5"))

	if !SEE(pos, mov, 0) {
		t.Fatalf("expected an even pawn trade to clear threshold 0")
	}
	if SEE(pos, mov, 1) {
		t.Fatalf("an even pawn trade should not clear threshold 1")
	}
}
