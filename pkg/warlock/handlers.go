package warlock

import "math"

// Resolution is everything a handler may read when computing an outcome.
type Resolution struct {
	Round   int
	Action  Action
	Ability AbilityDef
	Targets []*Entity
	// Power is the ability magnitude, or the Monster's attack for monster attacks.
	Power float64
	// DamageMultiplier is the actor's outgoing multiplier from class and effects.
	DamageMultiplier float64
	// Coordination is 1 unless several players share this target and category.
	Coordination float64
}

// Hit is the effect of an outcome on one target. Damage is raw, before mitigation.
type Hit struct {
	TargetID      string
	Damage        int
	Heal          int
	Effects       []StatusEffect
	Cleanse       bool
	Detect        bool
	CorruptChance float64
}

// Outcome is what a handler wants done. Handlers never mutate state.
type Outcome struct {
	Hits        []Hit
	SelfEffects []StatusEffect
	SelfCleanse bool
}

// Handler computes the outcome of one ability use.
type Handler func(res Resolution) Outcome

// Registry maps ability kinds to handlers.
type Registry struct {
	handlers map[Kind]Handler
}

// NewRegistry returns a registry with the built-in kinds.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[Kind]Handler)}
	r.Register(KindAttack, strike)
	r.Register(KindMultiAttack, strike)
	r.Register(KindMonsterAttack, strike)
	r.Register(KindDebuff, strike)
	r.Register(KindStun, strike)
	r.Register(KindHeal, mend)
	r.Register(KindMultiHeal, mend)
	r.Register(KindCleanse, mend)
	r.Register(KindShield, bestow)
	r.Register(KindBuff, bestow)
	r.Register(KindDetect, detect)
	r.Register(KindRage, rage)
	r.Register(KindCorrupt, corrupt)
	r.Register(KindPass, func(Resolution) Outcome { return Outcome{} })
	return r
}

// Register adds or replaces the handler for a kind.
func (r *Registry) Register(k Kind, h Handler) {
	r.handlers[k] = h
}

func (r *Registry) Lookup(k Kind) (Handler, bool) {
	h, ok := r.handlers[k]
	return h, ok
}

func round(f float64) int {
	return int(math.Round(f))
}

// scaled applies the coordination bonus to a solo magnitude. A coordinated
// participant always lands at least one point above solo.
func scaled(solo, coordination float64) int {
	base := round(solo)
	v := round(solo * coordination)
	if coordination > 1 && solo > 0 && v <= base {
		v = base + 1
	}
	return v
}

func effectsFor(res Resolution) []StatusEffect {
	if res.Ability.Effect == nil {
		return nil
	}
	return []StatusEffect{res.Ability.Effect.Instance(res.Action.ActorID)}
}

// strike deals scaled damage to every target and applies the ability's effect.
func strike(res Resolution) Outcome {
	dmg := 0
	if res.Power > 0 {
		dmg = scaled(res.Power*res.DamageMultiplier, res.Coordination)
	}
	var out Outcome
	for _, t := range res.Targets {
		out.Hits = append(out.Hits, Hit{TargetID: t.ID, Damage: dmg, Effects: effectsFor(res)})
	}
	return out
}

// mend heals every target. Cleanse kinds also strip debuffs.
func mend(res Resolution) Outcome {
	amount := 0
	if res.Power > 0 {
		amount = scaled(res.Power, res.Coordination)
	}
	var out Outcome
	for _, t := range res.Targets {
		out.Hits = append(out.Hits, Hit{
			TargetID: t.ID,
			Heal:     amount,
			Effects:  effectsFor(res),
			Cleanse:  res.Ability.Kind == KindCleanse,
		})
	}
	return out
}

func bestow(res Resolution) Outcome {
	var out Outcome
	for _, t := range res.Targets {
		out.Hits = append(out.Hits, Hit{TargetID: t.ID, Effects: effectsFor(res)})
	}
	return out
}

func detect(res Resolution) Outcome {
	var out Outcome
	for _, t := range res.Targets {
		out.Hits = append(out.Hits, Hit{TargetID: t.ID, Detect: true})
	}
	return out
}

func rage(res Resolution) Outcome {
	return Outcome{SelfCleanse: true, SelfEffects: effectsFor(res)}
}

func corrupt(res Resolution) Outcome {
	chance := res.Ability.Param("chance", 1)
	var out Outcome
	for _, t := range res.Targets {
		out.Hits = append(out.Hits, Hit{TargetID: t.ID, CorruptChance: chance})
	}
	return out
}
