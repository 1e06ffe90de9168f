package warlock

import (
	"fmt"
	"time"
)

// Room drives one game through its phases. It is not safe for concurrent
// use; callers serialize access per room.
type Room struct {
	gs  *GameState
	cfg *Config
	rng Rand
	now func() time.Time
	reg *Registry
}

type Option func(*Room)

// WithClock overrides the time source used for log and threat timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

// WithRegistry overrides the ability handler registry.
func WithRegistry(reg *Registry) Option {
	return func(r *Room) { r.reg = reg }
}

// NewRoom creates an empty room in the lobby.
func NewRoom(id string, cfg *Config, rng Rand, opts ...Option) *Room {
	return LoadRoom(&GameState{RoomID: id, Phase: PhaseLobby}, cfg, rng, opts...)
}

// LoadRoom wraps an existing state, typically decoded from storage.
func LoadRoom(gs *GameState, cfg *Config, rng Rand, opts ...Option) *Room {
	r := &Room{gs: gs, cfg: cfg, rng: rng, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	if r.reg == nil {
		r.reg = NewRegistry()
	}
	if gs.Monster != nil {
		if gs.Monster.Threat == nil {
			gs.Monster.Threat = NewThreatTable(cfg.Threat, r.now)
		} else {
			gs.Monster.Threat.Configure(cfg.Threat, r.now)
		}
	}
	return r
}

func (r *Room) State() *GameState { return r.gs }

func (r *Room) Config() *Config { return r.cfg }

func (r *Room) requirePhase(phases ...Phase) error {
	for _, ph := range phases {
		if r.gs.Phase == ph {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrWrongPhase, r.gs.Phase)
}

// Join adds a player to the lobby.
func (r *Room) Join(id, name string) error {
	if err := r.requirePhase(PhaseLobby, PhaseCharacterSelect); err != nil {
		return err
	}
	if r.gs.Player(id) != nil {
		return ErrAlreadyJoined
	}
	if len(r.gs.Players) >= r.cfg.MaxPlayers {
		return ErrRoomFull
	}
	r.gs.Players = append(r.gs.Players, &Player{
		Entity:    Entity{ID: id},
		Name:      name,
		Team:      TeamGood,
		Connected: true,
	})
	return nil
}

// Leave removes a player before the game starts.
func (r *Room) Leave(id string) error {
	if err := r.requirePhase(PhaseLobby, PhaseCharacterSelect); err != nil {
		return err
	}
	if !r.dropPlayer(id) {
		return ErrUnknownPlayer
	}
	return nil
}

func (r *Room) dropPlayer(id string) bool {
	for i, p := range r.gs.Players {
		if p.ID == id {
			r.gs.Players = append(r.gs.Players[:i], r.gs.Players[i+1:]...)
			return true
		}
	}
	return false
}

// OpenCharacterSelect moves the lobby to character selection.
func (r *Room) OpenCharacterSelect() error {
	if err := r.requirePhase(PhaseLobby); err != nil {
		return err
	}
	if len(r.gs.Players) < r.cfg.MinPlayers {
		return ErrNotEnoughPlayers
	}
	r.gs.Phase = PhaseCharacterSelect
	return nil
}

// SelectCharacter records a player's race and class.
func (r *Room) SelectCharacter(id, race, class string) error {
	if err := r.requirePhase(PhaseLobby, PhaseCharacterSelect); err != nil {
		return err
	}
	p := r.gs.Player(id)
	if p == nil {
		return ErrUnknownPlayer
	}
	rd, ok := r.cfg.Races[race]
	if !ok {
		return ErrUnknownRace
	}
	if _, ok := r.cfg.Classes[class]; !ok {
		return ErrUnknownClass
	}
	if !rd.Allows(class) {
		return ErrIncompatibleClass
	}
	p.Race, p.Class = race, class
	return nil
}

// Start locks the roster, assigns Warlocks, and opens round 1.
func (r *Room) Start() error {
	if err := r.requirePhase(PhaseCharacterSelect); err != nil {
		return err
	}
	n := len(r.gs.Players)
	if n < r.cfg.MinPlayers {
		return ErrNotEnoughPlayers
	}
	for _, p := range r.gs.Players {
		if p.Race == "" || p.Class == "" {
			return ErrNoCharacter
		}
	}

	for _, p := range r.gs.Players {
		race := r.cfg.Races[p.Race]
		class := r.cfg.Classes[p.Class]
		p.MaxHP = r.cfg.BaseHP + race.HPBonus + class.HPBonus
		if p.MaxHP < 1 {
			p.MaxHP = 1
		}
		p.HP = p.MaxHP
		p.Armor = r.cfg.BaseArmor + race.ArmorBonus + class.ArmorBonus
		p.Alive = true
		p.Team = TeamGood
		p.Abilities = append([]string(nil), class.Abilities...)
		if race.RacialAbility != "" && !p.HasAbility(race.RacialAbility) {
			p.Abilities = append(p.Abilities, race.RacialAbility)
		}
		p.Cooldowns = make(map[string]int)
		p.DamageMod = class.DamageMod
		if p.DamageMod <= 0 {
			p.DamageMod = 1
		}
	}

	warlocks := r.cfg.WarlockCount
	if warlocks > n-1 {
		warlocks = n - 1
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	r.rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	for _, i := range idx[:warlocks] {
		r.gs.Players[i].Team = TeamWarlock
	}

	mc := r.cfg.Monster
	r.gs.Monster = &Monster{
		Entity: Entity{ID: MonsterID, HP: mc.BaseHP, MaxHP: mc.BaseHP, Armor: mc.Armor, Alive: true},
		Attack: mc.Attack,
		Level:  1,
		Threat: NewThreatTable(r.cfg.Threat, r.now),
	}
	r.gs.Round = 1
	r.gs.Phase = PhaseAction

	lb := newLogBuilder(0, r.now)
	allies := r.gs.TeamMembers(TeamWarlock)
	for _, p := range r.gs.Players {
		d := RoleDetails{Team: p.Team}
		if p.Team == TeamWarlock {
			d.Allies = allies
		}
		lb.private(p.ID, EntryRole, d)
	}
	r.gs.LastLog = lb.entries
	return nil
}

// IsPlayerEligibleThisRound reports whether the player may submit an action now.
func (r *Room) IsPlayerEligibleThisRound(id string) bool {
	if r.gs.Phase != PhaseAction {
		return false
	}
	p := r.gs.Player(id)
	return p != nil && p.Alive && p.Connected && !p.Stunned()
}

// ValidateAction checks an action against the current state without storing it.
func (r *Room) ValidateAction(a Action) error {
	if r.gs.Phase != PhaseAction {
		return invalid(a, ErrWrongPhase, string(r.gs.Phase))
	}
	p := r.gs.Player(a.ActorID)
	if p == nil {
		return invalid(a, ErrUnknownPlayer, "")
	}
	if !r.IsPlayerEligibleThisRound(a.ActorID) {
		return invalid(a, ErrNotEligible, "")
	}
	if a.AbilityID == AbilityPass {
		return nil
	}
	ab, ok := r.cfg.Ability(a.AbilityID)
	if !ok || ab.Kind == KindMonsterAttack {
		return invalid(a, ErrUnknownAbility, a.AbilityID)
	}
	if !canUse(p, ab) {
		return invalid(a, ErrAbilityNotAvailable, a.AbilityID)
	}
	if left := p.CooldownRemaining(ab.ID, r.gs.Round); left > 0 {
		return invalid(a, ErrOnCooldown, fmt.Sprintf("%d rounds left", left))
	}
	if _, err := resolveTargets(r.gs, a.ActorID, ab.Target, a.TargetID); err != nil {
		return invalid(a, ErrInvalidTarget, a.TargetID)
	}
	return nil
}

// SubmitAction records a player's action for this round. A resubmission
// replaces the earlier one.
func (r *Room) SubmitAction(a Action) error {
	if err := r.ValidateAction(a); err != nil {
		return err
	}
	p := r.gs.Player(a.ActorID)
	a.Seq = r.gs.NextSeq
	r.gs.NextSeq++
	p.Action = &a
	p.Submitted = true
	return nil
}

// RestoreAction re-applies an action accepted earlier, keeping its sequence
// number. Later submissions are numbered after it.
func (r *Room) RestoreAction(a Action) error {
	if err := r.ValidateAction(a); err != nil {
		return err
	}
	p := r.gs.Player(a.ActorID)
	if a.Seq >= r.gs.NextSeq {
		r.gs.NextSeq = a.Seq + 1
	}
	p.Action = &a
	p.Submitted = true
	return nil
}

// AllSubmitted reports whether every eligible player has submitted.
func (r *Room) AllSubmitted() bool {
	for _, p := range r.gs.Players {
		if r.IsPlayerEligibleThisRound(p.ID) && !p.Submitted {
			return false
		}
	}
	return true
}

// SetConnected flips a player's connection flag.
func (r *Room) SetConnected(id string, connected bool) error {
	p := r.gs.Player(id)
	if p == nil {
		return ErrUnknownPlayer
	}
	p.Connected = connected
	return nil
}

// RemovePlayer drops a player from the roster after their reconnect window
// lapsed. During a game this may end it.
func (r *Room) RemovePlayer(id string) (GameResult, error) {
	if !r.dropPlayer(id) {
		return ResultNone, ErrUnknownPlayer
	}
	switch r.gs.Phase {
	case PhaseLobby, PhaseCharacterSelect, PhaseGameOver:
		return ResultNone, nil
	}
	if r.gs.Monster != nil && r.gs.Monster.Threat != nil {
		r.gs.Monster.Threat.Remove(id)
	}
	lb := newLogBuilder(r.gs.Round, r.now)
	lb.public(EntryPlayerRemoved, ActorDetails{ActorID: id, Reason: "disconnected"})

	result := ResultNone
	if len(r.gs.Players) == 0 {
		result = ResultAbandoned
	} else if r.gs.Phase != PhaseResolving {
		result = CheckWin(r.gs, r.cfg.Corruption.WarlockParity)
	}
	if result != ResultNone {
		r.finish(result, lb)
	}
	r.gs.LastLog = append(r.gs.LastLog, lb.entries...)
	return result, nil
}

// RoundResult summarizes one resolved round.
type RoundResult struct {
	Round     int        `json:"round"`
	Log       RoundLog   `json:"log"`
	Deaths    []string   `json:"deaths,omitempty"`
	Corrupted []string   `json:"corrupted,omitempty"`
	Result    GameResult `json:"result,omitempty"`
}

// ResolveRound resolves every pending action, sweeps effects, applies
// corruption, and checks for a winner.
func (r *Room) ResolveRound() (*RoundResult, error) {
	if err := r.requirePhase(PhaseAction, PhaseResolving); err != nil {
		return nil, err
	}
	gs := r.gs
	gs.Phase = PhaseResolving
	lb := newLogBuilder(gs.Round, r.now)

	var actions []Action
	for _, p := range gs.Players {
		switch {
		case !p.Alive:
		case p.Stunned():
			lb.public(EntryStunned, ActorDetails{ActorID: p.ID, Reason: "stunned"})
		case !p.Connected:
			lb.public(EntryPass, ActorDetails{ActorID: p.ID, Reason: "disconnected"})
		case p.Action == nil:
			lb.public(EntryPass, ActorDetails{ActorID: p.ID, Reason: "no action"})
		case p.Action.AbilityID == AbilityPass:
			lb.public(EntryPass, ActorDetails{ActorID: p.ID})
		default:
			actions = append(actions, *p.Action)
		}
	}

	pl := newPipeline(r.cfg, r.reg, gs, lb, r.rng)
	pl.Prepare(actions)

	// The Monster acts last in its category and picks a target when it resolves.
	if m := gs.Monster; m != nil && m.Alive {
		actions = append(actions, Action{ActorID: MonsterID, AbilityID: r.cfg.Monster.AbilityID, Seq: gs.NextSeq})
		gs.NextSeq++
	}

	for _, a := range OrderActions(actions, r.cfg) {
		pl.Resolve(a)
	}

	r.sweep(pl)
	if m := gs.Monster; m != nil {
		m.Threat.Decay()
		m.Threat.Prune(gs.AliveIDs())
		r.respawn(lb)
	}

	converted := NewEvaluator(r.cfg.Corruption, r.rng).Corrupt(gs, pl.attempts, pl.contacts, lb)

	result := CheckWin(gs, r.cfg.Corruption.WarlockParity)
	if result != ResultNone {
		r.finish(result, lb)
	} else {
		gs.Phase = PhaseResults
		for _, p := range gs.Players {
			p.Ready = false
		}
	}
	gs.LastLog = lb.entries

	return &RoundResult{
		Round:     gs.Round,
		Log:       lb.entries,
		Deaths:    pl.deaths,
		Corrupted: converted,
		Result:    result,
	}, nil
}

// sweep ticks every living entity's effects once.
func (r *Room) sweep(pl *Pipeline) {
	tick := func(e *Entity) {
		if !e.Alive {
			return
		}
		tr := e.Effects.Tick(r.gs.Round)
		if tr.Damage > 0 || tr.Healing > 0 {
			_, died := e.TakeDamage(tr.Damage)
			healed := e.Heal(tr.Healing)
			pl.log.public(EntryPeriodic, PeriodicDetails{
				TargetID: e.ID, Damage: tr.Damage, Healing: healed, RemainingHP: e.HP,
			})
			if died {
				pl.death(e.ID, "")
			}
		}
		for _, x := range tr.Expired {
			pl.log.public(EntryEffectExpired, EffectDetails{TargetID: e.ID, Effect: x.Name})
		}
	}
	for _, p := range r.gs.Players {
		tick(&p.Entity)
	}
	if r.gs.Monster != nil {
		tick(&r.gs.Monster.Entity)
	}
}

func (r *Room) respawn(lb *logBuilder) {
	m := r.gs.Monster
	mc := r.cfg.Monster
	if m.Alive || !mc.Respawn {
		return
	}
	m.Level++
	if mc.HPGrowth > 0 {
		m.MaxHP = round(float64(m.MaxHP) * mc.HPGrowth)
	}
	if mc.AttackGrowth > 0 {
		m.Attack = round(float64(m.Attack) * mc.AttackGrowth)
	}
	m.HP = m.MaxHP
	m.Alive = true
	m.Effects = nil
	lb.public(EntryMonsterRespawn, RespawnDetails{Level: m.Level, MaxHP: m.MaxHP, Attack: m.Attack})
}

func (r *Room) finish(result GameResult, lb *logBuilder) {
	r.gs.Result = result
	r.gs.Phase = PhaseGameOver
	teams := make(map[string]Team, len(r.gs.Players))
	for _, p := range r.gs.Players {
		teams[p.ID] = p.Team
	}
	lb.public(EntryGameOver, GameOverDetails{
		Result:   result,
		Winners:  Winners(r.gs, result),
		Warlocks: r.gs.TeamMembers(TeamWarlock),
		Teams:    teams,
	})
}

// PlayerReady marks a player done reviewing results.
func (r *Room) PlayerReady(id string) error {
	if err := r.requirePhase(PhaseResults); err != nil {
		return err
	}
	p := r.gs.Player(id)
	if p == nil {
		return ErrUnknownPlayer
	}
	p.Ready = true
	return nil
}

// AllReady reports whether every living, connected player is ready.
func (r *Room) AllReady() bool {
	for _, p := range r.gs.Players {
		if p.Alive && p.Connected && !p.Ready {
			return false
		}
	}
	return true
}

// BeginNextRound opens the next action phase.
func (r *Room) BeginNextRound() error {
	if err := r.requirePhase(PhaseResults); err != nil {
		return err
	}
	r.gs.Round++
	for _, p := range r.gs.Players {
		p.Submitted = false
		p.Action = nil
		p.Ready = false
	}
	r.gs.Phase = PhaseAction
	return nil
}
