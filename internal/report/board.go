package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/arborchess/arbor/internal/arena"
	"github.com/arborchess/arbor/internal/chess"
	"github.com/arborchess/arbor/internal/network"
)

var (
	lightSquare = lipgloss.NewStyle().Background(lipgloss.Color("222")).Foreground(lipgloss.Color("0"))
	darkSquare  = lipgloss.NewStyle().Background(lipgloss.Color("94")).Foreground(lipgloss.Color("0"))
	whitePiece  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	blackPiece  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0"))
)

// Board renders pos as an 8x8 colored grid for the `d` command, matching
// the square-per-cell styling approach _examples/other_examples'
// Mgrdich-TermChess uses lipgloss for.
func Board(pos *chess.Position) string {
	var b strings.Builder
	for rank := 7; rank >= 0; rank-- {
		fmt.Fprintf(&b, "%d ", rank+1)
		for file := 0; file <= 7; file++ {
			sq := chess.NewSquare(file, rank)
			piece := pos.PieceAt(sq)

			cell := " " + pieceGlyph(piece) + " "
			style := lightSquare
			if (file+rank)%2 == 0 {
				style = darkSquare
			}
			pieceStyle := whitePiece
			if piece != chess.NoPiece && piece.Color() == chess.Black {
				pieceStyle = blackPiece
			}
			b.WriteString(style.Render(pieceStyle.Render(cell)))
		}
		b.WriteByte('\n')
	}
	b.WriteString("  a  b  c  d  e  f  g  h\n")
	fmt.Fprintf(&b, "Fen: %s\n", pos.ToFEN())
	fmt.Fprintf(&b, "Hash: %016x\n", pos.Hash)
	return b.String()
}

func pieceGlyph(p chess.Piece) string {
	if p == chess.NoPiece {
		return "."
	}
	return p.String()
}

// Eval formats the `eval` command's output.
func Eval(value *network.ValueNetwork, pos *chess.Position) string {
	return value.String(pos)
}

// MoveReport is one line of the `policy`/`report_moves` debug command: a
// legal move alongside the raw prior logit and softmaxed probability the
// root expansion assigned it.
type MoveReport struct {
	Move chess.Move
	Logit float32
	Prob  float32
}

// Policy lists every legal move from pos with the policy network's raw
// logit, sorted by descending logit — the supplemented `policy` /
// `report_moves` debug command original_source exposes for inspecting
// root priors without running a search.
func Policy(policy *network.PolicyNetwork, pos *chess.Position) []MoveReport {
	moves := pos.GenerateLegalMoves()
	n := moves.Len()
	feats := policy.Features(pos)

	reports := make([]MoveReport, n)
	var maxLogit float32
	for i := 0; i < n; i++ {
		mov := moves.Get(i)
		logit := policy.Logit(pos, mov, feats)
		reports[i] = MoveReport{Move: mov, Logit: logit}
		if i == 0 || logit > maxLogit {
			maxLogit = logit
		}
	}

	var total float32
	for i := range reports {
		reports[i].Prob = expApprox(reports[i].Logit - maxLogit)
		total += reports[i].Prob
	}
	if total > 0 {
		for i := range reports {
			reports[i].Prob /= total
		}
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].Logit > reports[j].Logit })
	return reports
}

func expApprox(x float32) float32 {
	return float32(math.Exp(float64(x)))
}

// FormatMoveReports renders Policy's output as UCI "info string" lines.
func FormatMoveReports(reports []MoveReport) string {
	var b strings.Builder
	for _, r := range reports {
		fmt.Fprintf(&b, "info string %s logit %.3f prob %.4f\n", r.Move.String(), r.Logit, r.Prob)
	}
	return b.String()
}

// TreeHealth summarizes arena.Tree health (hashfull and flip count) in one
// line. No UCI command prints it.
func TreeHealth(t *arena.Tree) string {
	return fmt.Sprintf("hashfull %d flips %d", t.Hashfull(), t.Flips())
}
