// bgrollout - backgammon move generator and random-play rollouts
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/bgrollout/internal/config"
	"github.com/yourusername/bgrollout/pkg/api"
	"github.com/yourusername/bgrollout/pkg/engine"
	"github.com/yourusername/bgrollout/pkg/external"
	"github.com/yourusername/bgrollout/pkg/match"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "moves":
		cmdMoves(args)
	case "rollout":
		cmdRollout(args)
	case "play":
		cmdPlay(args)
	case "replay":
		cmdReplay(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`bgrollout - Backgammon move generator and rollouts

Usage: bgrollout <command> [options]

Commands:
  moves     List the legal plays for a dice roll
  rollout   Estimate win, gammon and backgammon rates by random play
  play      Play one random game and print every turn
  replay    Verify a JSON game transcript

Use "bgrollout <command> -h" for command-specific help.

Position ID Format:
  The position is specified using gnubg's position ID format, with o on roll.
  Example: "4HPwATDgc/ABMA:cIkqAAAAAAAA" (position:match)
  Only the position part (before :) is required. Omit it for the opening.
  A FIBS board string may be given with -fibs instead; you are o.

Environment:
  BGROLLOUT_TRIALS, BGROLLOUT_WORKERS, BGROLLOUT_SEED set rollout defaults.`)
}

func parsePosition(posStr string) (engine.Position, error) {
	if posStr == "" {
		return engine.Initial(), nil
	}
	p, err := engine.ParsePosition(posStr)
	if err != nil {
		return engine.Position{}, fmt.Errorf("invalid position ID: %w", err)
	}
	return p, nil
}

func parseDice(diceStr string) (engine.Dice, error) {
	parts := strings.Split(diceStr, ",")
	if len(parts) != 2 {
		parts = strings.Split(diceStr, "-")
	}
	if len(parts) != 2 {
		return engine.Dice{}, fmt.Errorf("dice should be in format '3,1' or '3-1'")
	}

	d1, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	d2, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return engine.Dice{}, fmt.Errorf("dice values must be numbers")
	}
	return engine.NewDice(d1, d2)
}

// positionFlags registers -position and its short form -p.
func positionFlags(fs *flag.FlagSet) func() string {
	posFlag := fs.String("position", "", "Position ID (gnubg format, default: opening)")
	posShort := fs.String("p", "", "Position ID (short form)")
	return func() string {
		if *posFlag != "" {
			return *posFlag
		}
		return *posShort
	}
}

// readFIBS parses a FIBS board string, exiting on error.
func readFIBS(s string) (*external.FIBSBoard, engine.Position) {
	fb, err := external.ParseFIBSBoard(s)
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	p, err := fb.Position()
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	return fb, p
}

func cmdMoves(args []string) {
	fs := flag.NewFlagSet("moves", flag.ExitOnError)
	pos := positionFlags(fs)
	fibsFlag := fs.String("fibs", "", "FIBS board string (supplies position, side and dice)")
	diceFlag := fs.String("dice", "", "Dice roll (e.g., '3,1' or '3-1')")
	sideFlag := fs.String("side", "o", "Side to play (o or x)")
	fs.Parse(args)

	var (
		p    engine.Position
		dice engine.Dice
		side engine.Side
		err  error
		ok   bool
	)
	if *fibsFlag != "" {
		var fb *external.FIBSBoard
		fb, p = readFIBS(*fibsFlag)
		if side, ok = fb.SideToMove(); !ok {
			config.Exitf("Error: %v", engine.ErrGameOver)
		}
		dice, ok = fb.Roll()
	} else {
		if p, err = parsePosition(pos()); err != nil {
			config.Exitf("Error: %v", err)
		}
		if side, err = engine.ParseSide(*sideFlag); err != nil {
			config.Exitf("Error: %v", err)
		}
	}

	if *diceFlag != "" {
		if dice, err = parseDice(*diceFlag); err != nil {
			config.Exitf("Error: %v", err)
		}
	} else if !ok {
		fmt.Fprintln(os.Stderr, "Error: dice required")
		fmt.Fprintln(os.Stderr, "Usage: bgrollout moves -dice 3,1 [-position <positionID>] [-side x]")
		os.Exit(1)
	}

	results := engine.LegalPositionsFor(side, p, dice)
	fmt.Printf("Position: %s (%s to play %s)\n", p.ID(), side, dice)
	if len(results) == 0 {
		fmt.Println("No legal play.")
		return
	}

	fmt.Printf("%d legal plays:\n", len(results))
	for i, q := range results {
		fmt.Printf("%3d. %s  pips %d/%d  %s\n", i+1, q.ID(), q.PipCount(engine.O), q.PipCount(engine.X), q)
	}
}

func cmdRollout(args []string) {
	fs := flag.NewFlagSet("rollout", flag.ExitOnError)
	pos := positionFlags(fs)
	fibsFlag := fs.String("fibs", "", "FIBS board string (supplies position and side)")
	cfg, err := config.ParseRolloutConfig(fs)
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	firstFlag := fs.String("first", "o", "Side that rolls first (o or x)")
	quiet := fs.Bool("q", false, "Do not print progress")
	fs.Parse(args)

	if err := cfg.Validate(); err != nil {
		config.Exitf("Error: %v", err)
	}
	p, err := parsePosition(pos())
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	first, err := engine.ParseSide(*firstFlag)
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	if *fibsFlag != "" {
		var fb *external.FIBSBoard
		fb, p = readFIBS(*fibsFlag)
		if side, ok := fb.SideToMove(); ok {
			first = side
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := engine.RolloutOptions{
		Trials:      cfg.Trials,
		Workers:     cfg.Workers,
		Seed:        cfg.Seed,
		FirstToMove: first,
	}
	var progress engine.ProgressCallback
	if !*quiet {
		progress = func(pr engine.RolloutProgress) {
			fmt.Fprintf(os.Stderr, "\r  %5.1f%%  o wins %.1f%% ± %.1f%%", pr.Percent, pr.OWin*100, pr.OWinCI*100)
		}
	}

	start := time.Now()
	result, err := engine.RolloutWithProgress(ctx, p, opts, progress)
	elapsed := time.Since(start)
	if !*quiet {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		config.Exitf("Error during rollout: %v", err)
	}

	fmt.Printf("Rollout of %s, %s first (%d trials, %.1fs):\n", p.ID(), first, result.Trials, elapsed.Seconds())
	printRates("o", result, result.OWin, result.OGammon, result.OBackgammon)
	printRates("x", result, result.XWin, result.XGammon, result.XBackgammon)
	fmt.Printf("  Game length: %.1f ± %.1f turns (longest %d)\n",
		result.MeanTurns, result.TurnsStdDev, result.LongestGame)
}

func printRates(side string, r *engine.RolloutResult, win, gammon, backgammon float64) {
	fmt.Printf("  %s wins: %5.1f%% ± %.1f%% (G: %.1f%%, BG: %.1f%%)\n",
		side, win*100, r.CI(win, 0.95)*100, gammon*100, backgammon*100)
}

func cmdPlay(args []string) {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	pos := positionFlags(fs)
	seed := fs.Int64("seed", 0, "Random seed (0 = time based)")
	firstFlag := fs.String("first", "o", "Side that rolls first (o or x)")
	fs.Parse(args)

	p, err := parsePosition(pos())
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	side, err := engine.ParseSide(*firstFlag)
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	if p.IsOver() {
		config.Exitf("Error: %v", engine.ErrGameOver)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	fmt.Printf("Seed %d, start %s\n", *seed, p.ID())
	for turn := 1; !p.IsOver(); turn++ {
		dice := engine.RollDice(rng)
		candidates := engine.LegalPositionsFor(side, p, dice)
		if len(candidates) == 0 {
			fmt.Printf("%4d. %s %s  no play\n", turn, side, dice)
		} else {
			p = candidates[rng.Intn(len(candidates))]
			fmt.Printf("%4d. %s %s  %s  pips %d/%d\n", turn, side, dice, p.ID(), p.PipCount(engine.O), p.PipCount(engine.X))
		}
		side = side.Opponent()
	}

	out := match.Classify(p)
	fmt.Printf("%s wins a %s (%d points)\n", out.Winner, out.Result, out.Result.Points())
}

func cmdReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	file := fs.String("f", "-", "Transcript file (JSON, - for stdin)")
	fs.Parse(args)

	var r io.Reader = os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			config.Exitf("Error: %v", err)
		}
		defer f.Close()
		r = f
	}

	var req api.ReplayRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		config.Exitf("Error reading transcript: %v", err)
	}
	start, err := parsePosition(req.Position)
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	g, err := api.BuildGame(req.Turns)
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	sides, moves := g.Moves()
	positions, err := g.Replay(start)
	for i, q := range positions {
		fmt.Printf("%4d. %s %s  %s\n", i+1, sides[i], moves[i], q.ID())
	}
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	final := start
	if len(positions) > 0 {
		final = positions[len(positions)-1]
	}
	out := match.Classify(final)
	if out.Result == match.ResultInProgress {
		fmt.Printf("Game in progress: %s\n", final)
		return
	}
	fmt.Printf("%s wins a %s\n", out.Winner, out.Result)
}
