package engine

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultTrials is the number of games a rollout plays when not told otherwise.
const DefaultTrials = 1000

// ErrGameOver is returned when a rollout starts from a finished game.
var ErrGameOver = errors.New("game is already over")

// RolloutOptions controls rollout execution
type RolloutOptions struct {
	Trials      int   // Number of games to simulate (default 1000)
	Seed        int64 // RNG seed (0 = random)
	Workers     int   // Number of parallel workers (0 = GOMAXPROCS)
	FirstToMove Side  // Side that rolls first in every trial
	BatchSize   int   // Trials per progress report (0 = about 20 reports)
}

// RolloutProgress contains progress information during a rollout
type RolloutProgress struct {
	TrialsCompleted int     // Number of trials completed so far
	TrialsTotal     int     // Total number of trials
	Percent         float64 // Percentage complete (0-100)
	OWin            float64 // Current o win rate
	OWinCI          float64 // Current 95% confidence half-width of OWin
}

// ProgressCallback is called periodically during rollout with progress updates
type ProgressCallback func(progress RolloutProgress)

// RolloutResult holds outcome frequencies over all trials. Gammons are
// counted within wins and backgammons within gammons, and every rate is
// divided by the number of trials.
type RolloutResult struct {
	Trials int

	OWin        float64
	OGammon     float64
	OBackgammon float64
	XWin        float64
	XGammon     float64
	XBackgammon float64

	// Raw counts, indexed by Side
	Wins        [2]int
	Gammons     [2]int
	Backgammons [2]int

	// 95% confidence half-width of OWin (and XWin, which mirrors it)
	WinCI float64

	// Game length in turns, passes included
	MeanTurns   float64
	TurnsStdDev float64
	LongestGame int
}

// CI returns the half-width of the normal-approximation confidence
// interval for a rate measured by this rollout, e.g. level 0.95.
func (r *RolloutResult) CI(rate, level float64) float64 {
	return confidenceHalfWidth(rate, r.Trials, level)
}

// StdErr returns the standard error of a rate measured by this rollout.
func (r *RolloutResult) StdErr(rate float64) float64 {
	return standardError(rate, r.Trials)
}

func standardError(rate float64, trials int) float64 {
	if trials <= 1 {
		return 0
	}
	return math.Sqrt(rate * (1 - rate) / float64(trials))
}

func confidenceHalfWidth(rate float64, trials int, level float64) float64 {
	if level <= 0 || level >= 1 {
		return 0
	}
	z := distuv.UnitNormal.Quantile(1 - (1-level)/2)
	return z * standardError(rate, trials)
}

// partialResult holds results from a single worker batch
type partialResult struct {
	trials      int
	wins        [2]int
	gammons     [2]int
	backgammons [2]int
	turns       []float64
}

func (pr *partialResult) add(o partialResult) {
	pr.trials += o.trials
	for s := 0; s < 2; s++ {
		pr.wins[s] += o.wins[s]
		pr.gammons[s] += o.gammons[s]
		pr.backgammons[s] += o.backgammons[s]
	}
	pr.turns = append(pr.turns, o.turns...)
}

// gameOutcome is the result of one played-out game.
type gameOutcome struct {
	winner     Side
	gammon     bool
	backgammon bool
	turns      int
}

// DefaultRolloutOptions returns sensible defaults
func DefaultRolloutOptions() RolloutOptions {
	return RolloutOptions{
		Trials:      DefaultTrials,
		Seed:        0,
		Workers:     0,
		FirstToMove: O,
	}
}

// Rollout plays opts.Trials random games from start and reports how they
// ended. The context is checked between trials.
func Rollout(ctx context.Context, start Position, opts RolloutOptions) (*RolloutResult, error) {
	return RolloutWithProgress(ctx, start, opts, nil)
}

// RolloutWithProgress is Rollout with a callback invoked after each batch
// of trials is merged. The callback runs on the calling goroutine.
func RolloutWithProgress(ctx context.Context, start Position, opts RolloutOptions, callback ProgressCallback) (*RolloutResult, error) {
	if start.IsOver() {
		return nil, ErrGameOver
	}
	opts = normalizeOptions(opts)

	g, gctx := errgroup.WithContext(ctx)
	results := make(chan partialResult, opts.Workers*4)

	trialsPerWorker := opts.Trials / opts.Workers
	extraTrials := opts.Trials % opts.Workers

	for i := 0; i < opts.Workers; i++ {
		workerTrials := trialsPerWorker
		if i < extraTrials {
			workerTrials++
		}
		if workerTrials == 0 {
			continue
		}
		workerSeed := opts.Seed + int64(i)*1000000

		g.Go(func() error {
			return rolloutWorker(gctx, start, opts.FirstToMove, workerTrials, opts.BatchSize, workerSeed, results)
		})
	}

	var werr error
	go func() {
		werr = g.Wait()
		close(results)
	}()

	var total partialResult
	for pr := range results {
		total.add(pr)
		if callback != nil {
			oWin := float64(total.wins[O]) / float64(total.trials)
			callback(RolloutProgress{
				TrialsCompleted: total.trials,
				TrialsTotal:     opts.Trials,
				Percent:         100.0 * float64(total.trials) / float64(opts.Trials),
				OWin:            oWin,
				OWinCI:          confidenceHalfWidth(oWin, total.trials, 0.95),
			})
		}
	}

	if werr != nil {
		return nil, werr
	}
	return summarize(total), nil
}

func normalizeOptions(opts RolloutOptions) RolloutOptions {
	if opts.Trials <= 0 {
		opts.Trials = DefaultTrials
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Workers > opts.Trials {
		opts.Workers = opts.Trials
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Int63()
	}
	if opts.BatchSize <= 0 {
		// Report progress approximately 20 times during the rollout
		opts.BatchSize = opts.Trials / 20
		if opts.BatchSize < 1 {
			opts.BatchSize = 1
		}
	}
	return opts
}

// rolloutWorker plays trials games with its own generator and sends the
// counts in batches.
func rolloutWorker(ctx context.Context, start Position, first Side, trials, batchSize int, seed int64, results chan<- partialResult) error {
	rng := rand.New(rand.NewSource(seed))

	for remaining := trials; remaining > 0; {
		batch := batchSize
		if batch > remaining {
			batch = remaining
		}

		pr := partialResult{turns: make([]float64, 0, batch)}
		for i := 0; i < batch; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := playOutGame(start, first, rng)
			pr.trials++
			pr.wins[out.winner]++
			if out.gammon {
				pr.gammons[out.winner]++
			}
			if out.backgammon {
				pr.backgammons[out.winner]++
			}
			pr.turns = append(pr.turns, float64(out.turns))
		}

		select {
		case results <- pr:
		case <-ctx.Done():
			return ctx.Err()
		}
		remaining -= batch
	}
	return nil
}

// playOutGame plays one game to completion, each side choosing uniformly
// among its legal resulting positions.
func playOutGame(start Position, first Side, rng *rand.Rand) gameOutcome {
	p := start
	side := first
	turns := 0

	for {
		d := RollDice(rng)
		candidates := LegalPositionsFor(side, p, d)
		if len(candidates) > 0 {
			p = candidates[rng.Intn(len(candidates))]
		}
		turns++

		if winner, ok := p.Winner(); ok {
			return gameOutcome{
				winner:     winner,
				gammon:     p.HasGammoned(winner),
				backgammon: p.HasBackgammoned(winner),
				turns:      turns,
			}
		}
		side = side.Opponent()
	}
}

func summarize(total partialResult) *RolloutResult {
	n := float64(total.trials)
	if n == 0 {
		return &RolloutResult{}
	}

	r := &RolloutResult{
		Trials:      total.trials,
		OWin:        float64(total.wins[O]) / n,
		OGammon:     float64(total.gammons[O]) / n,
		OBackgammon: float64(total.backgammons[O]) / n,
		XWin:        float64(total.wins[X]) / n,
		XGammon:     float64(total.gammons[X]) / n,
		XBackgammon: float64(total.backgammons[X]) / n,
		Wins:        total.wins,
		Gammons:     total.gammons,
		Backgammons: total.backgammons,
	}
	r.WinCI = confidenceHalfWidth(r.OWin, r.Trials, 0.95)

	r.MeanTurns, r.TurnsStdDev = stat.MeanStdDev(total.turns, nil)
	if math.IsNaN(r.TurnsStdDev) {
		r.TurnsStdDev = 0
	}
	r.LongestGame = int(floats.Max(total.turns))
	return r
}
