// Command simulate plays headless games on the round engine with bot
// policies and reports how the ruleset balances out.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/warlock/api/internal/config"
	"github.com/freeeve/warlock/api/internal/logger"
	"github.com/freeeve/warlock/api/pkg/warlock"
)

func main() {
	var (
		numGames   int
		players    int
		workers    int
		maxRounds  int
		seed       int64
		policyName string
		configPath string
		logLevel   string
		jsonOut    bool
	)

	flag.IntVar(&numGames, "n", 100, "Number of games to run")
	flag.IntVar(&players, "players", 5, "Seats per game")
	flag.IntVar(&workers, "workers", 4, "Concurrency (parallel games)")
	flag.IntVar(&maxRounds, "max-rounds", 60, "Rounds before a game counts as unfinished")
	flag.Int64Var(&seed, "seed", 0, "Base seed (0 = time based)")
	flag.StringVar(&policyName, "policy", "tactical", "Bot policy: tactical or random")
	flag.StringVar(&configPath, "config", os.Getenv("GAME_CONFIG_PATH"), "Game rules JSON (defaults to the built-in ruleset)")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level")
	flag.BoolVar(&jsonOut, "json", false, "Output results as JSON")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(logger.ParseLevel(logLevel))

	cfg, err := config.LoadGameConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Game config invalid")
	}
	if players < cfg.MinPlayers || players > cfg.MaxPlayers {
		log.Fatal().Int("players", players).Int("min", cfg.MinPlayers).Int("max", cfg.MaxPlayers).Msg("Seat count out of range")
	}
	policy, err := ParsePolicy(policyName)
	if err != nil {
		log.Fatal().Err(err).Msg("Bad policy")
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcomes := runGames(ctx, cfg, numGames, workers, GameSpec{
		Players:   players,
		MaxRounds: maxRounds,
		Seed:      seed,
		Policy:    policy,
	})

	summary := Summarize(outcomes)
	if jsonOut {
		printJSON(summary, outcomes)
	} else {
		printSummary(summary, players, policyName, seed)
	}
}

// runGames plays n games with at most workers in flight. Each game gets
// base.Seed plus its index so a run can be replayed.
func runGames(ctx context.Context, cfg *warlock.Config, n, workers int, base GameSpec) []*Outcome {
	outcomes := make([]*Outcome, n)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(workers, 1))

	for i := 0; i < n; i++ {
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			spec := base
			spec.Seed = base.Seed + int64(i)*2
			out, err := PlayGame(cfg, spec)
			if err != nil {
				log.Error().Err(err).Int("game", i+1).Int64("seed", spec.Seed).Msg("Game failed")
				return nil
			}
			outcomes[i] = out
			log.Info().Int("game", i+1).Str("result", string(out.Result)).Int("rounds", out.Rounds).
				Int("corrupted", out.Corrupted).Msg("Game completed")
			return nil
		})
	}
	eg.Wait()
	return outcomes
}

func printSummary(s Summary, players int, policy string, seed int64) {
	fmt.Printf("\nResults (%d games, %d seats, %s bots, seed %d):\n", s.Games, players, policy, seed)
	if s.Errors > 0 {
		fmt.Printf("  (%d games failed)\n", s.Errors)
	}

	results := make([]string, 0, len(s.Results))
	for r := range s.Results {
		results = append(results, string(r))
	}
	sort.Strings(results)
	for _, r := range results {
		n := s.Results[warlock.GameResult(r)]
		pct := 0.0
		if s.Games > 0 {
			pct = 100 * float64(n) / float64(s.Games)
		}
		fmt.Printf("  %-14s %4d  (%5.1f%%)\n", r, n, pct)
	}
	fmt.Printf("  avg rounds: %.1f  deaths: %d  corruptions: %d\n", s.AvgRounds, s.Deaths, s.Corrupted)
}

func printJSON(s Summary, outcomes []*Outcome) {
	out := struct {
		Summary  Summary    `json:"summary"`
		Outcomes []*Outcome `json:"outcomes"`
	}{
		Summary:  s,
		Outcomes: outcomes,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
