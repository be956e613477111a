// Package uci implements the Universal Chess Interface protocol loop,
// wiring UCI commands to internal/search's Searcher over a shared
// internal/arena.Tree and internal/network evaluators.
//
// Grounded on the teacher's internal/uci/uci.go for the scanner-driven
// command loop and option-parsing shape, generalized from an alpha-beta
// engine's options to the MCTS tunables in internal/search.Params.
package uci

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arborchess/arbor/internal/arena"
	"github.com/arborchess/arbor/internal/chess"
	"github.com/arborchess/arbor/internal/network"
	"github.com/arborchess/arbor/internal/report"
	"github.com/arborchess/arbor/internal/search"
	"github.com/arborchess/arbor/internal/store"
)

const (
	defaultHashMB  = 256
	defaultThreads = 1
)

// Metrics holds the Prometheus instruments the search loop feeds, wired
// up by cmd/arbor-uci so they survive across `ucinewgame`/resize calls.
type Metrics struct {
	NodesSearched prometheus.Counter
	TreeFlips     prometheus.Counter
	HashFull      prometheus.Gauge
}

// Engine bundles every component the UCI loop drives: the shared tree,
// the tunables, the two networks, and the telemetry store.
type Engine struct {
	Tree     *arena.Tree
	Params   *search.Params
	Policy   *network.PolicyNetwork
	Value    *network.ValueNetwork
	Searcher *search.Searcher
	Telemetry *store.Store
	Log      *zap.Logger
	Metrics  *Metrics

	HashMB   int
	Threads  int
	Chess960 bool
}

// NewEngine constructs an Engine with a freshly sized tree and searcher.
func NewEngine(policy *network.PolicyNetwork, value *network.ValueNetwork, telemetry *store.Store, log *zap.Logger) *Engine {
	params := search.NewDefaultParams()
	tree := arena.NewMB(defaultHashMB, defaultThreads)
	e := &Engine{
		Tree: tree, Params: params, Policy: policy, Value: value,
		Telemetry: telemetry, Log: log,
		HashMB: defaultHashMB, Threads: defaultThreads,
	}
	e.Searcher = search.NewSearcher(tree, params, policy, value, defaultThreads)
	return e
}

func (e *Engine) resize(hashMB, threads int) {
	e.HashMB, e.Threads = hashMB, threads
	e.Tree = arena.NewMB(hashMB, threads)
	e.Searcher = search.NewSearcher(e.Tree, e.Params, e.Policy, e.Value, threads)
}

// UCI drives the protocol loop over stdin/stdout.
type UCI struct {
	eng *Engine
	pos *chess.Position
	out *bufio.Writer

	searching bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a UCI handler bound to eng, ready to run.
func New(eng *Engine) *UCI {
	return &UCI{
		eng: eng,
		pos: chess.NewPosition(),
		out: bufio.NewWriter(os.Stdout),
	}
}

func (u *UCI) println(format string, args ...any) {
	fmt.Fprintf(u.out, format+"\n", args...)
	u.out.Flush()
}

// Run reads commands from stdin until `quit` or EOF.
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			u.println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			u.handleStop()
			return
		case "setoption":
			u.handleSetOption(args)
		case "d":
			u.println("%s", strings.TrimRight(report.Board(u.pos), "\n"))
		case "eval":
			u.println("%s", report.Eval(u.eng.Value, u.pos))
		case "policy", "report_moves":
			reports := report.Policy(u.eng.Policy, u.pos)
			u.out.WriteString(report.FormatMoveReports(reports))
			u.out.Flush()
		case "bench":
			nodes := int64(50_000)
			if len(args) > 0 {
				if n, err := strconv.ParseInt(args[0], 10, 64); err == nil {
					nodes = n
				}
			}
			u.println("%s", report.Bench(context.Background(), u.eng.Searcher, nodes))
		default:
			// Unknown commands are silently ignored, matching UCI's
			// tolerant-parser convention.
		}
	}
}

func (u *UCI) handleUCI() {
	u.println("id name Arbor")
	u.println("id author the arborchess project")
	u.println("option name Hash type spin default %d min 1 max 65536", defaultHashMB)
	u.println("option name Threads type spin default %d min 1 max 512", defaultThreads)
	u.println("option name UCI_Chess960 type check default false")
	u.println("option name MoveOverhead type spin default 5 min 0 max 5000")
	for _, param := range u.eng.Params.All() {
		u.println("option name %s type string default %v", param.Name, param.Val)
	}
	u.println("uciok")
}

func (u *UCI) handleNewGame() {
	u.eng.Tree.Clear()
	u.pos = chess.NewPosition()
}

func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	var pos *chess.Position
	var moveStart int

	switch args[0] {
	case "startpos":
		pos = chess.NewPosition()
		moveStart = 1
	case "fen":
		end := len(args)
		for i := 1; i < len(args); i++ {
			if args[i] == "moves" {
				end = i
				break
			}
		}
		parsed, err := chess.ParseFEN(strings.Join(args[1:end], " "))
		if err != nil {
			// Malformed FEN: fall back to the default starting position
			// rather than aborting the command.
			parsed = chess.NewPosition()
		}
		pos = parsed
		moveStart = end
	default:
		return
	}

	for i := moveStart; i < len(args); i++ {
		if args[i] == "moves" {
			continue
		}
		mov, err := chess.ParseMove(args[i], pos)
		if err != nil {
			// An illegal/unparseable move string in the list is skipped
			// rather than aborting the rest of the position setup.
			continue
		}
		pos.MakeMove(mov)
		pos.UpdateCheckers()
	}

	u.pos = pos
}

func (u *UCI) handleGo(args []string) {
	if u.searching {
		return
	}

	limits := search.Limits{}

	for i := 0; i < len(args); i++ {
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch args[i] {
		case "wtime":
			limits.WTime = parseMillis(next())
		case "btime":
			limits.BTime = parseMillis(next())
		case "winc":
			limits.WInc = parseMillis(next())
		case "binc":
			limits.BInc = parseMillis(next())
		case "movestogo":
			limits.MovesToGo = parseInt(next())
		case "movetime":
			limits.MoveTime = parseMillis(next())
		case "depth":
			limits.Depth = parseInt(next())
		case "nodes":
			limits.Nodes = int64(parseInt(next()))
		case "infinite":
			limits.Infinite = true
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	u.cancel = cancel
	u.done = make(chan struct{})
	u.searching = true

	pos := u.pos
	go func() {
		defer close(u.done)
		start := time.Now()
		var lastNodes int64
		var prevNodes int64
		flipsBefore := u.eng.Tree.Flips()
		best := u.eng.Searcher.Search(ctx, pos, limits, func(info search.Info) {
			if u.eng.Metrics != nil {
				u.eng.Metrics.NodesSearched.Add(float64(info.Nodes - prevNodes))
				prevNodes = info.Nodes
				u.eng.Metrics.HashFull.Set(float64(info.HashFull))
			}
			lastNodes = info.Nodes
			u.println("%s", report.InfoLine(info))
		})
		if u.eng.Metrics != nil {
			u.eng.Metrics.TreeFlips.Add(float64(u.eng.Tree.Flips() - flipsBefore))
		}
		elapsed := time.Since(start)
		nps := int64(0)
		if elapsed > 0 {
			nps = int64(float64(lastNodes) / elapsed.Seconds())
		}
		if u.eng.Telemetry != nil {
			_ = u.eng.Telemetry.RecordSearch(lastNodes, nps)
		}
		u.println("%s", report.BestMoveLine(best))
		u.searching = false
	}()
}

func (u *UCI) handleStop() {
	if u.eng.Searcher != nil {
		u.eng.Searcher.Stop()
	}
	if u.cancel != nil {
		u.cancel()
	}
	if u.done != nil {
		<-u.done
	}
}

func (u *UCI) handleSetOption(args []string) {
	name, value, ok := parseNameValue(args)
	if !ok {
		return
	}

	switch name {
	case "Hash":
		if mb := parseInt(value); mb > 0 {
			u.eng.resize(mb, u.eng.Threads)
		}
	case "Threads":
		if n := parseInt(value); n > 0 {
			u.eng.resize(u.eng.HashMB, n)
		}
	case "UCI_Chess960":
		u.eng.Chess960 = value == "true"
	case "MoveOverhead":
		u.eng.Params.MoveOverheadMs.Set(float64(parseInt(value)))
	case "Contempt":
		u.eng.Params.Contempt.Set(float64(parseInt(value)))
	default:
		if param := u.eng.Params.ByName(name); param != nil {
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				param.Set(v)
			}
		}
		// Unknown option names are silently ignored.
	}
}

func parseNameValue(args []string) (name, value string, ok bool) {
	var nameParts, valueParts []string
	mode := 0
	for _, a := range args {
		switch a {
		case "name":
			mode = 1
		case "value":
			mode = 2
		default:
			switch mode {
			case 1:
				nameParts = append(nameParts, a)
			case 2:
				valueParts = append(valueParts, a)
			}
		}
	}
	if len(nameParts) == 0 {
		return "", "", false
	}
	return strings.Join(nameParts, " "), strings.Join(valueParts, " "), true
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseMillis(s string) time.Duration {
	return time.Duration(parseInt(s)) * time.Millisecond
}
