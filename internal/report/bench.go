package report

import (
	"context"
	"fmt"
	"time"

	"github.com/arborchess/arbor/internal/chess"
	"github.com/arborchess/arbor/internal/search"
)

// benchPositions is a small, fixed FEN suite exercised by the `bench`
// command, the supplemented feature original_source's CLI exposes for
// quick nps/regression sanity checks without a full test suite.
var benchPositions = []string{
	"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
	"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3",
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
}

// Bench runs a fixed node budget at each bench position through s and
// reports total nodes and aggregate nps.
func Bench(ctx context.Context, s *search.Searcher, nodesPerPosition int64) string {
	start := time.Now()
	var totalNodes int64

	for _, fen := range benchPositions {
		pos, err := chess.ParseFEN(fen)
		if err != nil {
			continue
		}
		nodes := int64(0)
		s.Search(ctx, pos, search.Limits{Nodes: nodesPerPosition}, func(info search.Info) {
			nodes = info.Nodes
		})
		totalNodes += nodes
	}

	elapsed := time.Since(start)
	nps := int64(0)
	if elapsed > 0 {
		nps = int64(float64(totalNodes) / elapsed.Seconds())
	}
	return fmt.Sprintf("%d nodes %d nps", totalNodes, nps)
}
