package warlock

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// ThreatConfig tunes how actions feed the Monster's threat table.
type ThreatConfig struct {
	DamageMultiplier  float64 `json:"damage_multiplier"`
	HealingMultiplier float64 `json:"healing_multiplier"`
	AbilityThreat     float64 `json:"ability_threat"`
	DecayFactor       float64 `json:"decay_factor"`
	RandomnessFactor  float64 `json:"randomness_factor"`
}

// ThreatEntry is one player's accumulated threat.
type ThreatEntry struct {
	PlayerID  string    `json:"player_id"`
	Value     float64   `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ThreatTable tracks how much each player has drawn the Monster's attention.
// Entries exist only for players that have generated threat; a missing entry is zero.
type ThreatTable struct {
	Entries map[string]*ThreatEntry `json:"entries"`

	cfg ThreatConfig
	now func() time.Time
}

// NewThreatTable returns an empty table using cfg.
func NewThreatTable(cfg ThreatConfig, now func() time.Time) *ThreatTable {
	t := &ThreatTable{Entries: make(map[string]*ThreatEntry)}
	t.Configure(cfg, now)
	return t
}

// Configure rebinds tuning after the table has been decoded from storage.
func (t *ThreatTable) Configure(cfg ThreatConfig, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	t.cfg = cfg
	t.now = now
	if t.Entries == nil {
		t.Entries = make(map[string]*ThreatEntry)
	}
}

// AddThreat adds amount to a player's threat. Non-positive amounts are ignored.
func (t *ThreatTable) AddThreat(playerID string, amount float64) {
	if amount <= 0 || playerID == "" {
		return
	}
	e, ok := t.Entries[playerID]
	if !ok {
		e = &ThreatEntry{PlayerID: playerID}
		t.Entries[playerID] = e
	}
	e.Value += amount
	e.UpdatedAt = t.now()
}

func (t *ThreatTable) AddDamageThreat(playerID string, damage int) {
	t.AddThreat(playerID, float64(damage)*t.cfg.DamageMultiplier)
}

func (t *ThreatTable) AddHealingThreat(playerID string, healing int) {
	t.AddThreat(playerID, float64(healing)*t.cfg.HealingMultiplier)
}

// AddAbilityThreat adds the flat threat for an ability that neither damaged nor healed.
func (t *ThreatTable) AddAbilityThreat(playerID string) {
	t.AddThreat(playerID, t.cfg.AbilityThreat)
}

// Value returns a player's current threat. A negative stored value is
// clamped to zero.
func (t *ThreatTable) Value(playerID string) float64 {
	e, ok := t.Entries[playerID]
	if !ok {
		return 0
	}
	if e.Value < 0 {
		log.Warn().Str("player", playerID).Float64("value", e.Value).Msg("Clamping negative threat")
		e.Value = 0
	}
	return e.Value
}

// Len returns the number of tracked players.
func (t *ThreatTable) Len() int { return len(t.Entries) }

// Decay multiplies every entry by the decay factor.
func (t *ThreatTable) Decay() {
	for _, e := range t.Entries {
		e.Value *= t.cfg.DecayFactor
	}
}

// Remove drops a player's entry entirely.
func (t *ThreatTable) Remove(playerID string) {
	delete(t.Entries, playerID)
}

// Prune removes entries for players not in alive.
func (t *ThreatTable) Prune(alive []string) {
	keep := make(map[string]bool, len(alive))
	for _, id := range alive {
		keep[id] = true
	}
	for id := range t.Entries {
		if !keep[id] {
			delete(t.Entries, id)
		}
	}
}

// SelectTarget picks the living player with the highest jittered threat.
// With no threat recorded among the living it picks uniformly at random.
// ok is false only when alive is empty.
func (t *ThreatTable) SelectTarget(alive []string, rng Rand) (string, bool) {
	if len(alive) == 0 {
		return "", false
	}
	ids := append([]string(nil), alive...)
	sort.Strings(ids)

	best := ""
	bestScore := 0.0
	for _, id := range ids {
		v := t.Value(id)
		if v <= 0 {
			continue
		}
		score := v * (1 + t.cfg.RandomnessFactor*rng.Float64())
		if best == "" || score > bestScore {
			best, bestScore = id, score
		}
	}
	if best != "" {
		return best, true
	}
	return ids[rng.Intn(len(ids))], true
}

// Snapshot returns entries sorted by descending threat.
func (t *ThreatTable) Snapshot() []ThreatEntry {
	out := make([]ThreatEntry, 0, len(t.Entries))
	for _, e := range t.Entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}
