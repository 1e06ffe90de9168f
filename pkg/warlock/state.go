package warlock

// Team is a player's allegiance.
type Team string

const (
	TeamGood    Team = "good"
	TeamWarlock Team = "warlock"
)

// Phase is the room's position in the round cycle.
type Phase string

const (
	PhaseLobby           Phase = "lobby"
	PhaseCharacterSelect Phase = "character_select"
	PhaseAction          Phase = "action"
	PhaseResolving       Phase = "resolving"
	PhaseResults         Phase = "results"
	PhaseGameOver        Phase = "game_over"
)

// GameResult is the terminal outcome of a room.
type GameResult string

const (
	ResultNone        GameResult = ""
	ResultGoodWins    GameResult = "good_wins"
	ResultWarlocksWin GameResult = "warlocks_win"
	ResultDraw        GameResult = "draw"
	ResultAbandoned   GameResult = "abandoned"
)

// MonsterID is the reserved target id for the Monster.
const MonsterID = "monster"

// AbilityPass is the explicit no-op submission.
const AbilityPass = "pass"

// Entity holds the vitals shared by players and the Monster.
type Entity struct {
	ID      string    `json:"id"`
	HP      int       `json:"hp"`
	MaxHP   int       `json:"max_hp"`
	Armor   int       `json:"armor"`
	Alive   bool      `json:"alive"`
	Effects EffectSet `json:"effects,omitempty"`
}

// TakeDamage lowers HP by n (floored at zero) and reports whether this hit killed the entity.
func (e *Entity) TakeDamage(n int) (dealt int, died bool) {
	if n <= 0 || !e.Alive {
		return 0, false
	}
	dealt = n
	if dealt > e.HP {
		dealt = e.HP
	}
	e.HP = ApplyDamage(e.HP, n)
	if e.HP == 0 {
		e.Alive = false
		return dealt, true
	}
	return dealt, false
}

// Heal raises HP by n, capped at MaxHP, and returns the amount actually restored.
func (e *Entity) Heal(n int) int {
	if n <= 0 || !e.Alive {
		return 0
	}
	before := e.HP
	e.HP += n
	if e.HP > e.MaxHP {
		e.HP = e.MaxHP
	}
	return e.HP - before
}

// ApplyEffect adds a status effect through the entity's effect set.
func (e *Entity) ApplyEffect(effect StatusEffect, round int) error {
	return e.Effects.Apply(e.Alive, effect, round)
}

// Player is a participant in a room.
type Player struct {
	Entity
	Name      string         `json:"name"`
	Team      Team           `json:"team"`
	Race      string         `json:"race,omitempty"`
	Class     string         `json:"class,omitempty"`
	Abilities []string       `json:"abilities,omitempty"`
	Cooldowns map[string]int `json:"cooldowns,omitempty"` // ability id -> first round it may be used again
	DamageMod float64        `json:"damage_mod,omitempty"`
	Connected bool           `json:"connected"`
	Submitted bool           `json:"submitted"`
	Ready     bool           `json:"ready"`
	Action    *Action        `json:"action,omitempty"`
	Corrupted bool           `json:"corrupted,omitempty"`
}

// HasAbility reports whether the ability is in the player's kit.
func (p *Player) HasAbility(id string) bool {
	for _, a := range p.Abilities {
		if a == id {
			return true
		}
	}
	return false
}

// CooldownRemaining returns how many more rounds the ability is locked as of round.
func (p *Player) CooldownRemaining(abilityID string, round int) int {
	ready, ok := p.Cooldowns[abilityID]
	if !ok || ready <= round {
		return 0
	}
	return ready - round
}

// Stunned reports whether the player is incapacitated.
func (p *Player) Stunned() bool {
	return p.Effects.Stunned()
}

// Monster is the shared NPC opponent.
type Monster struct {
	Entity
	Attack int          `json:"attack"`
	Level  int          `json:"level"`
	Threat *ThreatTable `json:"threat"`
}

// Action is one submitted move. It is immutable once accepted.
type Action struct {
	ActorID   string            `json:"actor_id"`
	AbilityID string            `json:"ability_id"`
	TargetID  string            `json:"target_id,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Seq       int               `json:"seq"`
}

// GameState is a complete, serializable snapshot of a room.
type GameState struct {
	RoomID  string     `json:"room_id"`
	Phase   Phase      `json:"phase"`
	Round   int        `json:"round"`
	Players []*Player  `json:"players"`
	Monster *Monster   `json:"monster,omitempty"`
	NextSeq int        `json:"next_seq"`
	Result  GameResult `json:"result,omitempty"`
	LastLog RoundLog   `json:"last_log,omitempty"`
}

// Player returns the player with the given id, or nil.
func (gs *GameState) Player(id string) *Player {
	for _, p := range gs.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Entity returns the vitals for a player id or MonsterID.
func (gs *GameState) Entity(id string) *Entity {
	if id == MonsterID {
		if gs.Monster == nil {
			return nil
		}
		return &gs.Monster.Entity
	}
	if p := gs.Player(id); p != nil {
		return &p.Entity
	}
	return nil
}

// AlivePlayers returns living players in join order.
func (gs *GameState) AlivePlayers() []*Player {
	var alive []*Player
	for _, p := range gs.Players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

// AliveIDs returns the ids of living players in join order.
func (gs *GameState) AliveIDs() []string {
	var ids []string
	for _, p := range gs.Players {
		if p.Alive {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// TeamCount returns the number of living players on a team.
func (gs *GameState) TeamCount(team Team) int {
	n := 0
	for _, p := range gs.Players {
		if p.Alive && p.Team == team {
			n++
		}
	}
	return n
}

// TeamMembers returns the ids of every player on a team, living or not.
func (gs *GameState) TeamMembers(team Team) []string {
	var ids []string
	for _, p := range gs.Players {
		if p.Team == team {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
