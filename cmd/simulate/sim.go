package main

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/freeeve/warlock/api/pkg/warlock"
)

// resultUnfinished marks a game that hit the round cap.
const resultUnfinished warlock.GameResult = "unfinished"

// GameSpec describes one headless game.
type GameSpec struct {
	Players   int
	MaxRounds int
	Seed      int64
	Policy    Policy
}

// Outcome summarizes one finished game.
type Outcome struct {
	RoomID       string             `json:"room_id"`
	Seed         int64              `json:"seed"`
	Result       warlock.GameResult `json:"result"`
	Rounds       int                `json:"rounds"`
	Deaths       int                `json:"deaths"`
	Corrupted    int                `json:"corrupted"`
	MonsterLevel int                `json:"monster_level"`
	Classes      []string           `json:"classes"`
}

// PlayGame runs a full game on the engine with every seat driven by the policy.
func PlayGame(cfg *warlock.Config, spec GameSpec) (*Outcome, error) {
	roomID := uuid.NewString()
	room := warlock.NewRoom(roomID, cfg, warlock.NewRand(spec.Seed))
	botRng := warlock.NewRand(spec.Seed + 1)

	for i := 1; i <= spec.Players; i++ {
		id := fmt.Sprintf("bot-%d", i)
		if err := room.Join(id, fmt.Sprintf("Bot %d", i)); err != nil {
			return nil, fmt.Errorf("join %s: %w", id, err)
		}
	}
	if err := room.OpenCharacterSelect(); err != nil {
		return nil, fmt.Errorf("open character select: %w", err)
	}
	out := &Outcome{RoomID: roomID, Seed: spec.Seed}
	for _, p := range room.State().Players {
		race, class := pickCharacter(cfg, botRng)
		if err := room.SelectCharacter(p.ID, race, class); err != nil {
			return nil, fmt.Errorf("select %s/%s for %s: %w", race, class, p.ID, err)
		}
		out.Classes = append(out.Classes, race+"/"+class)
	}
	if err := room.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	for i := 0; i < spec.MaxRounds; i++ {
		for _, p := range room.State().Players {
			if !room.IsPlayerEligibleThisRound(p.ID) {
				continue
			}
			a := spec.Policy.Choose(room.ViewFor(p.ID), botRng)
			a.ActorID = p.ID
			if err := room.SubmitAction(a); err != nil {
				if err := room.SubmitAction(warlock.Action{ActorID: p.ID, AbilityID: warlock.AbilityPass}); err != nil {
					return nil, fmt.Errorf("round %d: pass for %s: %w", room.State().Round, p.ID, err)
				}
			}
		}

		res, err := room.ResolveRound()
		if err != nil {
			return nil, fmt.Errorf("resolve round %d: %w", room.State().Round, err)
		}
		out.Rounds = res.Round
		out.Deaths += len(res.Deaths)
		out.Corrupted += len(res.Corrupted)
		if m := room.State().Monster; m != nil {
			out.MonsterLevel = m.Level
		}
		if res.Result != warlock.ResultNone {
			out.Result = res.Result
			return out, nil
		}

		for _, p := range room.State().Players {
			if err := room.PlayerReady(p.ID); err != nil {
				return nil, fmt.Errorf("round %d: ready %s: %w", res.Round, p.ID, err)
			}
		}
		if err := room.BeginNextRound(); err != nil {
			return nil, fmt.Errorf("begin round %d: %w", res.Round+1, err)
		}
	}
	out.Result = resultUnfinished
	return out, nil
}

// pickCharacter draws a race, then a class that race allows.
func pickCharacter(cfg *warlock.Config, rng warlock.Rand) (string, string) {
	races := sortedKeys(cfg.Races)
	race := races[rng.Intn(len(races))]

	var classes []string
	for _, c := range sortedKeys(cfg.Classes) {
		if cfg.Races[race].Allows(c) {
			classes = append(classes, c)
		}
	}
	return race, classes[rng.Intn(len(classes))]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary aggregates outcomes.
type Summary struct {
	Games     int                        `json:"games"`
	Errors    int                        `json:"errors"`
	Results   map[warlock.GameResult]int `json:"results"`
	AvgRounds float64                    `json:"avg_rounds"`
	Deaths    int                        `json:"deaths"`
	Corrupted int                        `json:"corrupted"`
}

// Summarize tallies the outcomes; nil entries are failed games.
func Summarize(outcomes []*Outcome) Summary {
	s := Summary{Results: make(map[warlock.GameResult]int)}
	rounds := 0
	for _, o := range outcomes {
		if o == nil {
			s.Errors++
			continue
		}
		s.Games++
		s.Results[o.Result]++
		rounds += o.Rounds
		s.Deaths += o.Deaths
		s.Corrupted += o.Corrupted
	}
	if s.Games > 0 {
		s.AvgRounds = float64(rounds) / float64(s.Games)
	}
	return s
}
