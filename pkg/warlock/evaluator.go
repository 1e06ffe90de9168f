package warlock

import "sort"

// Evaluator applies end-of-round corruption and decides whether the game is over.
type Evaluator struct {
	cfg CorruptionConfig
	rng Rand
}

func NewEvaluator(cfg CorruptionConfig, rng Rand) *Evaluator {
	return &Evaluator{cfg: cfg, rng: rng}
}

// Corrupt converts Good players from this round's attempts and contacts.
// Direct attempts are evaluated first in resolution order, then contacts in
// player id order. It returns the ids of converted players.
func (e *Evaluator) Corrupt(gs *GameState, attempts []CorruptionAttempt, contacts map[string][]string, lb *logBuilder) []string {
	var converted []string
	tried := make(map[string]bool)

	try := func(targetID, sourceID, cause string, chance float64) {
		if tried[targetID] {
			return
		}
		p := gs.Player(targetID)
		if p == nil || !p.Alive || p.Team != TeamGood {
			return
		}
		tried[targetID] = true
		if p.Effects.CorruptionImmune() {
			return
		}
		if e.cfg.MaxPerRound > 0 && len(converted) >= e.cfg.MaxPerRound {
			return
		}
		if !e.withinCap(gs) {
			return
		}
		if chance < 1 && e.rng.Float64() >= chance {
			return
		}
		p.Team = TeamWarlock
		p.Corrupted = true
		converted = append(converted, p.ID)
		for _, w := range gs.TeamMembers(TeamWarlock) {
			lb.private(w, EntryCorruption, CorruptionDetails{PlayerID: p.ID, SourceID: sourceID, Cause: cause})
		}
	}

	for _, a := range attempts {
		if !a.Sole {
			continue
		}
		try(a.TargetID, a.SourceID, "direct", a.Chance)
	}
	if e.cfg.ContactChance > 0 {
		ids := make([]string, 0, len(contacts))
		for id := range contacts {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			src := ""
			if len(contacts[id]) > 0 {
				src = contacts[id][0]
			}
			try(id, src, "contact", e.cfg.ContactChance)
		}
	}
	return converted
}

// withinCap reports whether one more conversion keeps the Warlock share of
// living players at or below the configured fraction.
func (e *Evaluator) withinCap(gs *GameState) bool {
	if e.cfg.MaxWarlockFraction <= 0 {
		return true
	}
	alive := len(gs.AlivePlayers())
	if alive == 0 {
		return false
	}
	after := float64(gs.TeamCount(TeamWarlock)+1) / float64(alive)
	return after <= e.cfg.MaxWarlockFraction
}

// CheckWin evaluates the win conditions in fixed priority.
func CheckWin(gs *GameState, parity bool) GameResult {
	good := gs.TeamCount(TeamGood)
	warlocks := gs.TeamCount(TeamWarlock)
	switch {
	case good == 0 && warlocks == 0:
		return ResultDraw
	case warlocks == 0:
		return ResultGoodWins
	case good == 0:
		return ResultWarlocksWin
	case parity && warlocks >= good:
		return ResultWarlocksWin
	}
	return ResultNone
}

// Winners returns the ids of players on the winning team.
func Winners(gs *GameState, result GameResult) []string {
	switch result {
	case ResultGoodWins:
		return gs.TeamMembers(TeamGood)
	case ResultWarlocksWin:
		return gs.TeamMembers(TeamWarlock)
	}
	return nil
}
