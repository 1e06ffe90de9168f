package warlock

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
)

// CoordinationKey groups actions that share a target and a category.
type CoordinationKey struct {
	TargetID string
	Category Category
}

func coordinationKey(a Action, ab AbilityDef) CoordinationKey {
	target := a.TargetID
	if ab.Target.Multi() {
		target = "*" + string(ab.Target)
	}
	return CoordinationKey{TargetID: target, Category: ab.Category}
}

// CoordinationGroups maps each shared target and category to the distinct
// players acting on it. The Monster and passes never coordinate.
func CoordinationGroups(actions []Action, cfg *Config) map[CoordinationKey][]string {
	seen := make(map[CoordinationKey]map[string]bool)
	groups := make(map[CoordinationKey][]string)
	for _, a := range actions {
		if a.ActorID == MonsterID || a.AbilityID == AbilityPass {
			continue
		}
		ab, ok := cfg.Ability(a.AbilityID)
		if !ok || ab.Kind == KindPass {
			continue
		}
		k := coordinationKey(a, ab)
		if seen[k] == nil {
			seen[k] = make(map[string]bool)
		}
		if seen[k][a.ActorID] {
			continue
		}
		seen[k][a.ActorID] = true
		groups[k] = append(groups[k], a.ActorID)
	}
	return groups
}

// CoordinationMultiplier returns 1 + bonus*(n-1) for n >= 2 participants, else 1.
func CoordinationMultiplier(n int, bonus float64) float64 {
	if n < 2 {
		return 1
	}
	return 1 + bonus*float64(n-1)
}

// OrderActions sorts by category order, then submission sequence.
func OrderActions(actions []Action, cfg *Config) []Action {
	out := append([]Action(nil), actions...)
	prio := func(a Action) int {
		if ab, ok := cfg.Ability(a.AbilityID); ok {
			return ab.Category.Priority()
		}
		return len(categoryOrder)
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := prio(out[i]), prio(out[j])
		if pi != pj {
			return pi < pj
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// MitigateDamage converts raw damage into what the target loses. Armor is
// subtracted first, then multipliers apply. Full reduction yields zero;
// otherwise any positive raw damage deals at least 1.
func MitigateDamage(raw, armor int, takenMultiplier, reduction float64) int {
	if raw <= 0 || reduction >= 1 {
		return 0
	}
	dmg := float64(raw-armor) * takenMultiplier * (1 - reduction)
	if dmg < 1 {
		return 1
	}
	return int(math.Round(dmg))
}

// ApplyDamage returns hp after losing dmg, floored at zero.
func ApplyDamage(hp, dmg int) int {
	if dmg <= 0 {
		return hp
	}
	if dmg >= hp {
		return 0
	}
	return hp - dmg
}

// CorruptionAttempt is a direct conversion attempt recorded during resolution.
type CorruptionAttempt struct {
	SourceID  string
	TargetID  string
	AbilityID string
	Chance    float64
	Sole      bool
}

// Pipeline resolves the actions of one round against a game state.
type Pipeline struct {
	cfg   *Config
	reg   *Registry
	gs    *GameState
	log   *logBuilder
	rng   Rand
	round int

	coordination map[CoordinationKey][]string
	attempts     []CorruptionAttempt
	contacts     map[string][]string // good player id -> warlock ids that targeted them
	deaths       []string
}

func newPipeline(cfg *Config, reg *Registry, gs *GameState, lb *logBuilder, rng Rand) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		reg:      reg,
		gs:       gs,
		log:      lb,
		rng:      rng,
		round:    gs.Round,
		contacts: make(map[string][]string),
	}
}

// Prepare fixes coordination groups from the final action set.
func (p *Pipeline) Prepare(actions []Action) {
	p.coordination = CoordinationGroups(actions, p.cfg)
}

func (p *Pipeline) coordinationFor(a Action, ab AbilityDef) float64 {
	if a.ActorID == MonsterID {
		return 1
	}
	n := len(p.coordination[coordinationKey(a, ab)])
	return CoordinationMultiplier(n, p.cfg.CoordinationBonus)
}

func (p *Pipeline) warn(msg string, a Action) {
	log.Warn().Str("roomId", p.gs.RoomID).Int("round", p.round).
		Str("actor", a.ActorID).Str("ability", a.AbilityID).Msg(msg)
	p.log.public(EntryWarning, WarningDetails{Message: msg})
}

func (p *Pipeline) visibility(actorID string, ab AbilityDef) Visibility {
	if ab.Hidden && actorID != MonsterID {
		return PrivateTo(actorID)
	}
	return Public()
}

// Resolve validates and applies one action, reporting whether it took effect.
func (p *Pipeline) Resolve(a Action) bool {
	actor := p.gs.Entity(a.ActorID)
	if actor == nil {
		p.warn("action from unknown actor dropped", a)
		return false
	}
	var player *Player
	if a.ActorID != MonsterID {
		player = p.gs.Player(a.ActorID)
	}
	if !actor.Alive {
		if player != nil {
			p.log.private(player.ID, EntrySkipped, ActorDetails{ActorID: player.ID, Reason: "dead"})
		}
		return false
	}
	if actor.Effects.Stunned() {
		p.log.public(EntryStunned, ActorDetails{ActorID: a.ActorID, Reason: "stunned"})
		return false
	}

	ab, ok := p.cfg.Ability(a.AbilityID)
	if !ok {
		p.warn("action with unknown ability dropped", a)
		return false
	}
	vis := p.visibility(a.ActorID, ab)
	if player != nil {
		if !canUse(player, ab) {
			p.fizzle(vis, a, "ability not available")
			return false
		}
		if player.CooldownRemaining(ab.ID, p.round) > 0 {
			p.fizzle(vis, a, "on cooldown")
			return false
		}
	}

	if a.ActorID == MonsterID && a.TargetID == "" {
		target, ok := p.monsterTarget()
		if !ok {
			p.fizzle(vis, a, "no living players")
			return false
		}
		a.TargetID = target
	}

	targets, err := resolveTargets(p.gs, a.ActorID, ab.Target, a.TargetID)
	if err != nil {
		p.startCooldown(player, ab)
		p.fizzle(vis, a, "target no longer valid")
		return false
	}

	h, ok := p.reg.Lookup(ab.Kind)
	if !ok {
		p.warn(fmt.Sprintf("no handler for kind %s", ab.Kind), a)
		return false
	}
	res := Resolution{
		Round:            p.round,
		Action:           a,
		Ability:          ab,
		Targets:          targets,
		Power:            ab.Magnitude,
		DamageMultiplier: actor.Effects.DamageMultiplier(),
		Coordination:     p.coordinationFor(a, ab),
	}
	if player != nil && player.DamageMod > 0 {
		res.DamageMultiplier *= player.DamageMod
	}
	if ab.Kind == KindMonsterAttack && p.gs.Monster != nil {
		res.Power = float64(p.gs.Monster.Attack)
	}

	out, ok := p.compute(h, res)
	if !ok {
		return false
	}
	p.startCooldown(player, ab)
	used := AbilityDetails{ActorID: a.ActorID, AbilityID: ab.ID, TargetID: a.TargetID, Category: ab.Category}
	if ab.Category == CategoryDetection && vis.Scope == ScopePublic {
		// The actor learns the target from its private detection entry.
		used.TargetID = ""
	}
	p.log.add(vis, EntryAbility, used)

	fed := p.apply(a, ab, actor, player, out, res.Coordination, vis)
	if player != nil && !fed && p.gs.Monster != nil && p.gs.Monster.Threat != nil {
		p.gs.Monster.Threat.AddAbilityThreat(player.ID)
	}
	return true
}

// monsterTarget picks the Monster's victim from threat as it stands now.
func (p *Pipeline) monsterTarget() (string, bool) {
	alive := p.gs.AliveIDs()
	t := p.gs.Monster.Threat
	t.Prune(alive)
	return t.SelectTarget(alive, p.rng)
}

// compute runs the handler, turning a panic into a no-op.
func (p *Pipeline) compute(h Handler, res Resolution) (out Outcome, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.warn(fmt.Sprintf("ability handler failed: %v", r), res.Action)
			out, ok = Outcome{}, false
		}
	}()
	return h(res), true
}

func (p *Pipeline) fizzle(vis Visibility, a Action, reason string) {
	p.log.add(vis, EntryFizzle, FizzleDetails{
		ActorID: a.ActorID, AbilityID: a.AbilityID, TargetID: a.TargetID, Reason: reason,
	})
}

func (p *Pipeline) startCooldown(player *Player, ab AbilityDef) {
	if player == nil || ab.Cooldown <= 0 {
		return
	}
	if player.Cooldowns == nil {
		player.Cooldowns = make(map[string]int)
	}
	player.Cooldowns[ab.ID] = p.round + ab.Cooldown + 1
}

func (p *Pipeline) apply(a Action, ab AbilityDef, actor *Entity, player *Player, out Outcome, coord float64, vis Visibility) (threatFed bool) {
	var threat *ThreatTable
	if p.gs.Monster != nil {
		threat = p.gs.Monster.Threat
	}

	corruptTargets := 0
	for _, hit := range out.Hits {
		if hit.CorruptChance > 0 {
			if tp := p.gs.Player(hit.TargetID); tp != nil && tp.Team != TeamWarlock {
				corruptTargets++
			}
		}
	}

	for _, hit := range out.Hits {
		target := p.gs.Entity(hit.TargetID)
		if target == nil || !target.Alive {
			continue
		}
		if hit.Damage > 0 {
			p.damage(a.ActorID, ab.ID, target, hit.Damage, coord, vis)
			threatFed = true
			if hit.TargetID == MonsterID && player != nil && threat != nil {
				threat.AddDamageThreat(player.ID, hit.Damage)
			}
		}
		if hit.Heal > 0 {
			healed := target.Heal(hit.Heal)
			p.log.add(vis, EntryHeal, HealDetails{
				SourceID: a.ActorID, TargetID: target.ID, AbilityID: ab.ID, Amount: healed, RemainingHP: target.HP,
			})
			threatFed = true
			if player != nil && threat != nil && healed > 0 {
				threat.AddHealingThreat(player.ID, healed)
			}
		}
		for _, e := range hit.Effects {
			p.applyEffect(target, e, vis)
		}
		if hit.Cleanse {
			p.cleanse(a.ActorID, target, vis)
		}
		if hit.Detect {
			p.detect(a.ActorID, ab, actor, hit.TargetID)
		}
		if hit.CorruptChance > 0 && player != nil && player.Team == TeamWarlock {
			if tp := p.gs.Player(hit.TargetID); tp != nil && tp.Team != TeamWarlock {
				p.attempts = append(p.attempts, CorruptionAttempt{
					SourceID: player.ID, TargetID: tp.ID, AbilityID: ab.ID,
					Chance: hit.CorruptChance, Sole: corruptTargets == 1,
				})
			}
		}
		if player != nil && player.Team == TeamWarlock && ab.Kind != KindCorrupt {
			if tp := p.gs.Player(hit.TargetID); tp != nil && tp.ID != player.ID && tp.Team == TeamGood {
				p.contacts[tp.ID] = appendUnique(p.contacts[tp.ID], player.ID)
			}
		}
	}

	if out.SelfCleanse {
		p.cleanse(a.ActorID, actor, vis)
	}
	for _, e := range out.SelfEffects {
		p.applyEffect(actor, e, vis)
	}
	return threatFed
}

func (p *Pipeline) damage(sourceID, abilityID string, target *Entity, raw int, coord float64, vis Visibility) {
	amount := MitigateDamage(raw, target.Armor+target.Effects.ArmorBonus(),
		target.Effects.DamageTakenMultiplier(), target.Effects.Reduction())
	dealt, died := target.TakeDamage(amount)
	d := DamageDetails{
		SourceID: sourceID, TargetID: target.ID, AbilityID: abilityID,
		Raw: raw, Amount: dealt, RemainingHP: target.HP,
	}
	if coord > 1 {
		d.Coordinated = coord
	}
	p.log.add(vis, EntryDamage, d)
	if died {
		p.death(target.ID, sourceID)
	}
}

func (p *Pipeline) death(id, killer string) {
	p.deaths = append(p.deaths, id)
	p.log.public(EntryDeath, DeathDetails{EntityID: id, KillerID: killer})
}

func (p *Pipeline) applyEffect(target *Entity, e StatusEffect, vis Visibility) {
	d := EffectDetails{TargetID: target.ID, SourceID: e.SourceID, Effect: e.Name, Duration: e.Duration}
	if err := target.ApplyEffect(e, p.round); err != nil {
		d.Reason = err.Error()
		p.log.add(vis, EntryEffectResisted, d)
		return
	}
	if cur := target.Effects.Query(e.Name); cur != nil {
		d.Stacks = cur.Stacks
	}
	p.log.add(vis, EntryEffectApplied, d)
}

func (p *Pipeline) cleanse(sourceID string, target *Entity, vis Visibility) {
	removed := target.Effects.ClearNegative()
	if len(removed) == 0 {
		return
	}
	names := make([]string, len(removed))
	for i, e := range removed {
		names[i] = e.Name
	}
	p.log.add(vis, EntryCleansed, CleanseDetails{TargetID: target.ID, SourceID: sourceID, Removed: names})
}

func (p *Pipeline) detect(actorID string, ab AbilityDef, actor *Entity, targetID string) {
	tp := p.gs.Player(targetID)
	if tp == nil {
		return
	}
	p.log.private(actorID, EntryDetection, DetectionDetails{ActorID: actorID, TargetID: tp.ID, Team: tp.Team})
	p.log.public(EntryDetectionPublic, DetectionPublicDetails{ActorID: actorID})
	backlash := ab.Param("backlash", 0)
	if tp.Team != TeamWarlock || backlash <= 0 {
		return
	}
	dmg := round(backlash * float64(actor.MaxHP))
	if dmg < 1 {
		dmg = 1
	}
	dealt, died := actor.TakeDamage(dmg)
	p.log.private(actorID, EntryDamage, DamageDetails{
		SourceID: actorID, TargetID: actorID, AbilityID: ab.ID, Raw: dmg, Amount: dealt, RemainingHP: actor.HP,
	})
	if died {
		p.death(actorID, actorID)
	}
}

func canUse(p *Player, ab AbilityDef) bool {
	if ab.WarlockOnly {
		return p.Team == TeamWarlock
	}
	return p.HasAbility(ab.ID)
}

// resolveTargets returns the living entities an ability would hit.
func resolveTargets(gs *GameState, actorID string, kind TargetKind, targetID string) ([]*Entity, error) {
	single := func(e *Entity) ([]*Entity, error) {
		if e == nil || !e.Alive {
			return nil, ErrInvalidTarget
		}
		return []*Entity{e}, nil
	}
	switch kind {
	case TargetSelf:
		return single(gs.Entity(actorID))
	case TargetPlayer:
		if targetID == MonsterID {
			return nil, ErrInvalidTarget
		}
		return single(gs.Entity(targetID))
	case TargetMonster:
		if targetID != "" && targetID != MonsterID {
			return nil, ErrInvalidTarget
		}
		return single(gs.Entity(MonsterID))
	case TargetAny:
		return single(gs.Entity(targetID))
	case TargetAllEnemies:
		var out []*Entity
		if gs.Monster != nil && gs.Monster.Alive && actorID != MonsterID {
			out = append(out, &gs.Monster.Entity)
		}
		for _, p := range gs.Players {
			if p.Alive && p.ID != actorID {
				out = append(out, &p.Entity)
			}
		}
		if len(out) == 0 {
			return nil, ErrInvalidTarget
		}
		return out, nil
	case TargetAllAllies:
		var out []*Entity
		for _, p := range gs.Players {
			if p.Alive {
				out = append(out, &p.Entity)
			}
		}
		if len(out) == 0 {
			return nil, ErrInvalidTarget
		}
		return out, nil
	}
	return nil, ErrInvalidTarget
}

func appendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}
