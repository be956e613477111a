// Package report formats search telemetry for the UCI protocol and for
// the engine's human-facing debug commands (`d`, `eval`, `policy`,
// `bench`), and renders the board with
// github.com/charmbracelet/lipgloss the way
// _examples/other_examples' Mgrdich-TermChess renders its board.
package report

import (
	"fmt"
	"strings"

	"github.com/arborchess/arbor/internal/chess"
	"github.com/arborchess/arbor/internal/search"
)

// InfoLine formats one `info` line matching
// "info depth D seldepth S score {cp X|mate M} time T nodes N nps R
// hashfull H pv ...".
func InfoLine(info search.Info) string {
	var b strings.Builder
	fmt.Fprintf(&b, "info depth %d", max1(info.Depth))
	if info.SelDepth > 0 {
		fmt.Fprintf(&b, " seldepth %d", info.SelDepth)
	}
	if info.Mate != 0 {
		fmt.Fprintf(&b, " score mate %d", info.Mate)
	} else {
		fmt.Fprintf(&b, " score cp %d", info.ScoreCP)
	}
	fmt.Fprintf(&b, " time %d nodes %d nps %d hashfull %d",
		info.Time.Milliseconds(), info.Nodes, info.NPS, info.HashFull)

	if len(info.PV) > 0 {
		b.WriteString(" pv")
		for _, m := range info.PV {
			b.WriteByte(' ')
			b.WriteString(m.String())
		}
	}
	return b.String()
}

func max1(d int) int {
	if d < 1 {
		return 1
	}
	return d
}

// BestMoveLine formats the `bestmove` line that ends a search.
func BestMoveLine(m chess.Move) string {
	if m == 0 {
		return "bestmove 0000"
	}
	return "bestmove " + m.String()
}
