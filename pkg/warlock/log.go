package warlock

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntryType names what a log entry records.
type EntryType string

const (
	EntryRole            EntryType = "role_assigned"
	EntryAbility         EntryType = "ability_used"
	EntryDamage          EntryType = "damage"
	EntryHeal            EntryType = "heal"
	EntryEffectApplied   EntryType = "effect_applied"
	EntryEffectResisted  EntryType = "effect_resisted"
	EntryEffectExpired   EntryType = "effect_expired"
	EntryCleansed        EntryType = "cleansed"
	EntryFizzle          EntryType = "fizzle"
	EntryPass            EntryType = "pass"
	EntryStunned         EntryType = "stunned"
	EntrySkipped         EntryType = "skipped"
	EntryDetection       EntryType = "detection"
	EntryDetectionPublic EntryType = "detection_public"
	EntryPeriodic        EntryType = "periodic"
	EntryDeath           EntryType = "death"
	EntryMonsterRespawn  EntryType = "monster_respawned"
	EntryCorruption      EntryType = "corruption"
	EntryPlayerRemoved   EntryType = "player_removed"
	EntryGameOver        EntryType = "game_over"
	EntryWarning         EntryType = "warning"
)

// Scope is who may read an entry.
type Scope string

const (
	ScopePublic  Scope = "public"
	ScopePrivate Scope = "private"
)

// Visibility scopes an entry. Private entries name exactly one recipient by id.
type Visibility struct {
	Scope       Scope  `json:"scope"`
	RecipientID string `json:"recipient_id,omitempty"`
}

func Public() Visibility { return Visibility{Scope: ScopePublic} }

func PrivateTo(id string) Visibility { return Visibility{Scope: ScopePrivate, RecipientID: id} }

// Details is the typed payload of an entry.
type Details interface {
	isDetails()
}

type RoleDetails struct {
	Team   Team     `json:"team"`
	Allies []string `json:"allies,omitempty"`
}

type AbilityDetails struct {
	ActorID   string   `json:"actor_id"`
	AbilityID string   `json:"ability_id"`
	TargetID  string   `json:"target_id,omitempty"`
	Category  Category `json:"category"`
}

type DamageDetails struct {
	SourceID    string  `json:"source_id"`
	TargetID    string  `json:"target_id"`
	AbilityID   string  `json:"ability_id,omitempty"`
	Raw         int     `json:"raw"`
	Amount      int     `json:"amount"`
	Coordinated float64 `json:"coordinated,omitempty"`
	RemainingHP int     `json:"remaining_hp"`
}

type HealDetails struct {
	SourceID    string `json:"source_id"`
	TargetID    string `json:"target_id"`
	AbilityID   string `json:"ability_id,omitempty"`
	Amount      int    `json:"amount"`
	RemainingHP int    `json:"remaining_hp"`
}

type EffectDetails struct {
	TargetID string `json:"target_id"`
	SourceID string `json:"source_id,omitempty"`
	Effect   string `json:"effect"`
	Duration int    `json:"duration,omitempty"`
	Stacks   int    `json:"stacks,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type CleanseDetails struct {
	TargetID string   `json:"target_id"`
	SourceID string   `json:"source_id"`
	Removed  []string `json:"removed"`
}

type FizzleDetails struct {
	ActorID   string `json:"actor_id"`
	AbilityID string `json:"ability_id"`
	TargetID  string `json:"target_id,omitempty"`
	Reason    string `json:"reason"`
}

// ActorDetails covers pass, stunned, and skipped entries.
type ActorDetails struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

type DetectionDetails struct {
	ActorID  string `json:"actor_id"`
	TargetID string `json:"target_id"`
	Team     Team   `json:"team"`
}

// DetectionPublicDetails only says that a detection happened, never on whom.
type DetectionPublicDetails struct {
	ActorID string `json:"actor_id"`
}

type PeriodicDetails struct {
	TargetID    string `json:"target_id"`
	Damage      int    `json:"damage,omitempty"`
	Healing     int    `json:"healing,omitempty"`
	RemainingHP int    `json:"remaining_hp"`
}

type DeathDetails struct {
	EntityID string `json:"entity_id"`
	KillerID string `json:"killer_id,omitempty"`
}

type RespawnDetails struct {
	Level  int `json:"level"`
	MaxHP  int `json:"max_hp"`
	Attack int `json:"attack"`
}

type CorruptionDetails struct {
	PlayerID string `json:"player_id"`
	SourceID string `json:"source_id,omitempty"`
	Cause    string `json:"cause"`
}

type GameOverDetails struct {
	Result   GameResult      `json:"result"`
	Winners  []string        `json:"winners,omitempty"`
	Warlocks []string        `json:"warlocks,omitempty"`
	Teams    map[string]Team `json:"teams,omitempty"`
}

type WarningDetails struct {
	Message string `json:"message"`
}

func (RoleDetails) isDetails()            {}
func (AbilityDetails) isDetails()         {}
func (DamageDetails) isDetails()          {}
func (HealDetails) isDetails()            {}
func (EffectDetails) isDetails()          {}
func (CleanseDetails) isDetails()         {}
func (FizzleDetails) isDetails()          {}
func (ActorDetails) isDetails()           {}
func (DetectionDetails) isDetails()       {}
func (DetectionPublicDetails) isDetails() {}
func (PeriodicDetails) isDetails()        {}
func (DeathDetails) isDetails()           {}
func (RespawnDetails) isDetails()         {}
func (CorruptionDetails) isDetails()      {}
func (GameOverDetails) isDetails()        {}
func (WarningDetails) isDetails()         {}

var detailDecoders = map[EntryType]func(json.RawMessage) (Details, error){
	EntryRole:            decodeDetails[RoleDetails],
	EntryAbility:         decodeDetails[AbilityDetails],
	EntryDamage:          decodeDetails[DamageDetails],
	EntryHeal:            decodeDetails[HealDetails],
	EntryEffectApplied:   decodeDetails[EffectDetails],
	EntryEffectResisted:  decodeDetails[EffectDetails],
	EntryEffectExpired:   decodeDetails[EffectDetails],
	EntryCleansed:        decodeDetails[CleanseDetails],
	EntryFizzle:          decodeDetails[FizzleDetails],
	EntryPass:            decodeDetails[ActorDetails],
	EntryStunned:         decodeDetails[ActorDetails],
	EntrySkipped:         decodeDetails[ActorDetails],
	EntryDetection:       decodeDetails[DetectionDetails],
	EntryDetectionPublic: decodeDetails[DetectionPublicDetails],
	EntryPeriodic:        decodeDetails[PeriodicDetails],
	EntryDeath:           decodeDetails[DeathDetails],
	EntryMonsterRespawn:  decodeDetails[RespawnDetails],
	EntryCorruption:      decodeDetails[CorruptionDetails],
	EntryPlayerRemoved:   decodeDetails[ActorDetails],
	EntryGameOver:        decodeDetails[GameOverDetails],
	EntryWarning:         decodeDetails[WarningDetails],
}

func decodeDetails[T Details](raw json.RawMessage) (Details, error) {
	var d T
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// LogEntry is one line of a round's resolution log.
type LogEntry struct {
	ID         string     `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
	Round      int        `json:"round"`
	Type       EntryType  `json:"type"`
	Visibility Visibility `json:"visibility"`
	Details    Details    `json:"details"`
}

// UnmarshalJSON decodes Details into the concrete type registered for Type.
func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID         string          `json:"id"`
		Timestamp  time.Time       `json:"timestamp"`
		Round      int             `json:"round"`
		Type       EntryType       `json:"type"`
		Visibility Visibility      `json:"visibility"`
		Details    json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.ID, e.Timestamp, e.Round, e.Type, e.Visibility = aux.ID, aux.Timestamp, aux.Round, aux.Type, aux.Visibility
	e.Details = nil
	if len(aux.Details) == 0 || string(aux.Details) == "null" {
		return nil
	}
	dec, ok := detailDecoders[aux.Type]
	if !ok {
		return fmt.Errorf("unknown log entry type %q", aux.Type)
	}
	d, err := dec(aux.Details)
	if err != nil {
		return fmt.Errorf("decode %s details: %w", aux.Type, err)
	}
	e.Details = d
	return nil
}

// VisibleTo reports whether the player may read the entry.
func (e LogEntry) VisibleTo(playerID string) bool {
	switch e.Visibility.Scope {
	case ScopePublic:
		return true
	case ScopePrivate:
		return playerID != "" && e.Visibility.RecipientID == playerID
	}
	return false
}

// RoundLog is the ordered log of one round.
type RoundLog []LogEntry

// VisibleTo filters the log to what one player may read.
func (l RoundLog) VisibleTo(playerID string) RoundLog {
	out := RoundLog{}
	for _, e := range l {
		if e.VisibleTo(playerID) {
			out = append(out, e)
		}
	}
	return out
}

// Public filters the log to public entries only.
func (l RoundLog) Public() RoundLog {
	return l.VisibleTo("")
}

// OfType returns the entries of one type.
func (l RoundLog) OfType(t EntryType) RoundLog {
	var out RoundLog
	for _, e := range l {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// logBuilder appends entries for one round.
type logBuilder struct {
	round   int
	now     func() time.Time
	entries RoundLog
}

func newLogBuilder(round int, now func() time.Time) *logBuilder {
	return &logBuilder{round: round, now: now}
}

func (b *logBuilder) add(vis Visibility, t EntryType, d Details) {
	b.entries = append(b.entries, LogEntry{
		ID:         uuid.NewString(),
		Timestamp:  b.now(),
		Round:      b.round,
		Type:       t,
		Visibility: vis,
		Details:    d,
	})
}

func (b *logBuilder) public(t EntryType, d Details) {
	b.add(Public(), t, d)
}

func (b *logBuilder) private(to string, t EntryType, d Details) {
	b.add(PrivateTo(to), t, d)
}
