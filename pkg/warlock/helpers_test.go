package warlock

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// stubRand returns fixed draws and never reorders.
type stubRand struct {
	f float64
	n int
}

func (s stubRand) Float64() float64 { return s.f }

func (s stubRand) Intn(n int) int {
	if s.n >= n {
		return n - 1
	}
	return s.n
}

func (s stubRand) Shuffle(int, func(i, j int)) {}

// testConfig is the default ruleset with the random parts switched off.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Threat.RandomnessFactor = 0
	cfg.Corruption.ContactChance = 0
	cfg.Corruption.MaxWarlockFraction = 0
	cfg.Corruption.MaxPerRound = 0
	cfg.Monster.Respawn = false
	return cfg
}

func newPlayer(id string, team Team, hp int, abilities ...string) *Player {
	return &Player{
		Entity:    Entity{ID: id, HP: hp, MaxHP: 100, Alive: true},
		Name:      id,
		Team:      team,
		Abilities: abilities,
		Cooldowns: make(map[string]int),
		DamageMod: 1,
		Connected: true,
	}
}

// activeRoom builds a room in the action phase of round 1 with a 200 HP,
// armor 3 Monster.
func activeRoom(t *testing.T, cfg *Config, players ...*Player) *Room {
	t.Helper()
	gs := &GameState{
		RoomID:  "room-1",
		Phase:   PhaseAction,
		Round:   1,
		Players: players,
		Monster: &Monster{
			Entity: Entity{ID: MonsterID, HP: 200, MaxHP: 200, Armor: 3, Alive: true},
			Attack: 15,
			Level:  1,
		},
	}
	return LoadRoom(gs, cfg, stubRand{}, WithClock(fixedClock))
}

func submit(t *testing.T, r *Room, actor, ability, target string) {
	t.Helper()
	if err := r.SubmitAction(Action{ActorID: actor, AbilityID: ability, TargetID: target}); err != nil {
		t.Fatalf("submit %s %s -> %s: %v", actor, ability, target, err)
	}
}

func entriesOf(l RoundLog, typ EntryType) RoundLog {
	return l.OfType(typ)
}
