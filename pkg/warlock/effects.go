package warlock

import (
	"math"

	"github.com/rs/zerolog/log"
)

// EffectKind splits effects into buffs and debuffs.
type EffectKind string

const (
	Buff   EffectKind = "buff"
	Debuff EffectKind = "debuff"
)

// StackPolicy decides what happens when an effect of the same name is reapplied.
type StackPolicy string

const (
	StackRefresh StackPolicy = "refresh" // new duration, magnitude unchanged
	StackStack   StackPolicy = "stack"   // stack count +1 up to MaxStacks, duration refreshed
	StackReject  StackPolicy = "reject"  // second application fails
)

// Modifiers are the numeric parameters an effect contributes.
// Zero values are neutral.
type Modifiers struct {
	DamageMultiplier      float64 `json:"damage_multiplier,omitempty"`
	ArmorDelta            int     `json:"armor_delta,omitempty"`
	DamageTakenMultiplier float64 `json:"damage_taken_multiplier,omitempty"`
	DamageReduction       float64 `json:"damage_reduction,omitempty"` // 1 = no damage taken
	DamagePerRound        int     `json:"damage_per_round,omitempty"`
	HealPerRound          int     `json:"heal_per_round,omitempty"`
	Stun                  bool    `json:"stun,omitempty"`
	DebuffImmune          bool    `json:"debuff_immune,omitempty"`
	CorruptionImmune      bool    `json:"corruption_immune,omitempty"`
}

// StatusEffect is a timed buff or debuff attached to an entity.
type StatusEffect struct {
	Name         string      `json:"name"`
	Kind         EffectKind  `json:"kind"`
	Stacking     StackPolicy `json:"stacking,omitempty"`
	Stacks       int         `json:"stacks"`
	MaxStacks    int         `json:"max_stacks,omitempty"`
	Duration     int         `json:"duration"`
	AppliedRound int         `json:"applied_round"`
	SourceID     string      `json:"source_id,omitempty"`
	Modifiers    Modifiers   `json:"modifiers"`
}

// EffectSet is the active effects on one entity. Names are unique;
// stackable effects track a count instead of duplicating entries.
type EffectSet []StatusEffect

// Apply adds e, following the policy the effect type declares when the name is
// already active. Effects applied during round are not ticked until the next round.
func (s *EffectSet) Apply(alive bool, e StatusEffect, round int) error {
	if !alive {
		return ErrEntityDead
	}
	if e.Duration <= 0 {
		return ErrInvalidDuration
	}
	if e.Kind == Debuff && s.DebuffImmune() {
		return ErrImmune
	}
	if e.Stacking == "" {
		e.Stacking = StackRefresh
	}
	if e.Stacks < 1 {
		e.Stacks = 1
	}
	e.AppliedRound = round

	cur := s.Query(e.Name)
	if cur == nil {
		*s = append(*s, e)
		return nil
	}
	switch cur.Stacking {
	case StackReject:
		return ErrAlreadyActive
	case StackStack:
		if cur.MaxStacks == 0 || cur.Stacks < cur.MaxStacks {
			cur.Stacks++
		}
	default:
		cur.Modifiers = e.Modifiers
	}
	cur.Duration = e.Duration
	cur.AppliedRound = round
	cur.SourceID = e.SourceID
	return nil
}

// Query returns the active effect with the given name, or nil.
func (s EffectSet) Query(name string) *StatusEffect {
	for i := range s {
		if s[i].Name == name {
			return &s[i]
		}
	}
	return nil
}

// Remove deletes the named effect and reports whether it was present.
func (s *EffectSet) Remove(name string) bool {
	for i := range *s {
		if (*s)[i].Name == name {
			*s = append((*s)[:i], (*s)[i+1:]...)
			return true
		}
	}
	return false
}

// ClearNegative removes every debuff and returns what was removed.
func (s *EffectSet) ClearNegative() []StatusEffect {
	var removed []StatusEffect
	kept := (*s)[:0]
	for _, e := range *s {
		if e.Kind == Debuff {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	*s = kept
	return removed
}

// TickResult is what one round tick produced for an entity.
type TickResult struct {
	Damage  int
	Healing int
	Expired []StatusEffect
}

// Tick advances every effect by one round. Effects applied during round are
// skipped so they survive into the next round. Periodic damage and healing
// fire on each counted tick, scaled by stack count.
func (s *EffectSet) Tick(round int) TickResult {
	var res TickResult
	kept := (*s)[:0]
	for _, e := range *s {
		if e.Duration <= 0 {
			log.Warn().Str("effect", e.Name).Int("duration", e.Duration).Msg("Dropping effect with non-positive duration")
			continue
		}
		if e.AppliedRound >= round {
			kept = append(kept, e)
			continue
		}
		res.Damage += e.Modifiers.DamagePerRound * e.count()
		res.Healing += e.Modifiers.HealPerRound * e.count()
		e.Duration--
		if e.Duration == 0 {
			res.Expired = append(res.Expired, e)
			continue
		}
		kept = append(kept, e)
	}
	*s = kept
	return res
}

// count is how many applications the effect represents, at least one.
func (e StatusEffect) count() int {
	if e.Stacks < 1 {
		return 1
	}
	return e.Stacks
}

// DamageMultiplier is the product of all outgoing damage multipliers. Each
// stack multiplies again.
func (s EffectSet) DamageMultiplier() float64 {
	m := 1.0
	for _, e := range s {
		if e.Modifiers.DamageMultiplier > 0 {
			m *= math.Pow(e.Modifiers.DamageMultiplier, float64(e.count()))
		}
	}
	return m
}

// DamageTakenMultiplier is the product of all incoming damage multipliers.
func (s EffectSet) DamageTakenMultiplier() float64 {
	m := 1.0
	for _, e := range s {
		if e.Modifiers.DamageTakenMultiplier > 0 {
			m *= math.Pow(e.Modifiers.DamageTakenMultiplier, float64(e.count()))
		}
	}
	return m
}

// ArmorBonus sums armor deltas times stacks.
func (s EffectSet) ArmorBonus() int {
	n := 0
	for _, e := range s {
		n += e.Modifiers.ArmorDelta * e.count()
	}
	return n
}

// Reduction returns the strongest percentage damage reduction, capped at 1.
func (s EffectSet) Reduction() float64 {
	r := 0.0
	for _, e := range s {
		if e.Modifiers.DamageReduction > r {
			r = e.Modifiers.DamageReduction
		}
	}
	if r > 1 {
		r = 1
	}
	return r
}

func (s EffectSet) Stunned() bool {
	for _, e := range s {
		if e.Modifiers.Stun {
			return true
		}
	}
	return false
}

func (s EffectSet) DebuffImmune() bool {
	for _, e := range s {
		if e.Modifiers.DebuffImmune {
			return true
		}
	}
	return false
}

func (s EffectSet) CorruptionImmune() bool {
	for _, e := range s {
		if e.Modifiers.CorruptionImmune {
			return true
		}
	}
	return false
}
