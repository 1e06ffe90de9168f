package main

import (
	"fmt"

	"github.com/freeeve/warlock/api/pkg/warlock"
)

// Policy picks an action for one seat from what that seat can see.
// ActorID is filled in by the caller.
type Policy interface {
	Choose(v warlock.RoomView, rng warlock.Rand) warlock.Action
}

// ParsePolicy maps a flag value to a policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "random":
		return randomPolicy{}, nil
	case "tactical", "":
		return tacticalPolicy{healBelow: 0.4, detectChance: 0.3}, nil
	}
	return nil, fmt.Errorf("unknown policy %q (want random or tactical)", name)
}

func readyAbilities(v warlock.RoomView) []warlock.AbilityView {
	if v.You == nil {
		return nil
	}
	var out []warlock.AbilityView
	for _, ab := range v.You.Abilities {
		if ab.CooldownRemaining == 0 {
			out = append(out, ab)
		}
	}
	return out
}

func livingPlayers(v warlock.RoomView, except string) []warlock.PlayerView {
	var out []warlock.PlayerView
	for _, p := range v.Players {
		if p.Alive && p.ID != except {
			out = append(out, p)
		}
	}
	return out
}

func pass() warlock.Action {
	return warlock.Action{AbilityID: warlock.AbilityPass}
}

// randomPolicy picks any ready ability and any legal-looking target.
type randomPolicy struct{}

func (randomPolicy) Choose(v warlock.RoomView, rng warlock.Rand) warlock.Action {
	ready := readyAbilities(v)
	if len(ready) == 0 {
		return pass()
	}
	ab := ready[rng.Intn(len(ready))]
	a := warlock.Action{AbilityID: ab.ID}
	switch ab.Target {
	case warlock.TargetMonster:
		a.TargetID = warlock.MonsterID
	case warlock.TargetPlayer, warlock.TargetAny:
		candidates := livingPlayers(v, "")
		if ab.Target == warlock.TargetAny && v.Monster != nil && v.Monster.Alive {
			candidates = append(candidates, warlock.PlayerView{ID: warlock.MonsterID})
		}
		if len(candidates) == 0 {
			return pass()
		}
		a.TargetID = candidates[rng.Intn(len(candidates))].ID
	}
	return a
}

// tacticalPolicy plays its team: the good side heals the wounded, probes
// for Warlocks and otherwise hits the Monster; Warlocks corrupt when they
// can and blend in when they can't.
type tacticalPolicy struct {
	healBelow    float64
	detectChance float64
}

func (t tacticalPolicy) Choose(v warlock.RoomView, rng warlock.Rand) warlock.Action {
	if v.You == nil {
		return pass()
	}
	ready := readyAbilities(v)
	byCategory := make(map[warlock.Category][]warlock.AbilityView)
	for _, ab := range ready {
		byCategory[ab.Category] = append(byCategory[ab.Category], ab)
	}

	if v.You.Team == warlock.TeamWarlock {
		for _, ab := range byCategory[warlock.CategorySpecial] {
			if ab.Target != warlock.TargetPlayer {
				continue
			}
			// Teammates show their team to a Warlock; everyone else is blank.
			var marks []warlock.PlayerView
			for _, p := range livingPlayers(v, v.You.ID) {
				if p.Team == "" {
					marks = append(marks, p)
				}
			}
			if len(marks) > 0 {
				return warlock.Action{AbilityID: ab.ID, TargetID: marks[rng.Intn(len(marks))].ID}
			}
		}
		return t.attack(v, byCategory)
	}

	if a, ok := t.heal(v, byCategory); ok {
		return a
	}
	if dets := byCategory[warlock.CategoryDetection]; len(dets) > 0 && rng.Float64() < t.detectChance {
		others := livingPlayers(v, v.You.ID)
		if len(others) > 0 {
			return warlock.Action{AbilityID: dets[0].ID, TargetID: others[rng.Intn(len(others))].ID}
		}
	}
	return t.attack(v, byCategory)
}

// heal tends the most wounded living player under the threshold.
func (t tacticalPolicy) heal(v warlock.RoomView, byCategory map[warlock.Category][]warlock.AbilityView) (warlock.Action, bool) {
	var worst *warlock.PlayerView
	for i, p := range v.Players {
		if !p.Alive || p.MaxHP == 0 {
			continue
		}
		frac := float64(p.HP) / float64(p.MaxHP)
		if frac >= t.healBelow {
			continue
		}
		if worst == nil || frac < float64(worst.HP)/float64(worst.MaxHP) {
			worst = &v.Players[i]
		}
	}
	if worst == nil {
		return warlock.Action{}, false
	}
	for _, ab := range byCategory[warlock.CategoryHeal] {
		switch {
		case ab.Target == warlock.TargetAllAllies:
			return warlock.Action{AbilityID: ab.ID}, true
		case ab.Target == warlock.TargetPlayer:
			return warlock.Action{AbilityID: ab.ID, TargetID: worst.ID}, true
		case ab.Target == warlock.TargetSelf && worst.ID == v.You.ID:
			return warlock.Action{AbilityID: ab.ID}, true
		}
	}
	return warlock.Action{}, false
}

// attack hits the Monster, preferring anything over the basic slash. Area
// attacks also hit players, so only Warlocks use them.
func (t tacticalPolicy) attack(v warlock.RoomView, byCategory map[warlock.Category][]warlock.AbilityView) warlock.Action {
	if v.Monster == nil || !v.Monster.Alive {
		return pass()
	}
	var best *warlock.AbilityView
	attacks := byCategory[warlock.CategoryAttack]
	for i, ab := range attacks {
		if ab.Target == warlock.TargetPlayer || ab.Target == warlock.TargetSelf {
			continue
		}
		if ab.Target == warlock.TargetAllEnemies && v.You.Team != warlock.TeamWarlock {
			continue
		}
		if best == nil || ab.ID != "slash" && best.ID == "slash" {
			best = &attacks[i]
		}
	}
	if best == nil {
		return pass()
	}
	a := warlock.Action{AbilityID: best.ID}
	if best.Target == warlock.TargetAny || best.Target == warlock.TargetMonster {
		a.TargetID = warlock.MonsterID
	}
	return a
}
