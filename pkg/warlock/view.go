package warlock

import "sort"

// EffectView is the public face of a status effect.
type EffectView struct {
	Name     string     `json:"name"`
	Kind     EffectKind `json:"kind"`
	Stacks   int        `json:"stacks"`
	Duration int        `json:"duration"`
}

type PlayerView struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Race      string       `json:"race,omitempty"`
	Class     string       `json:"class,omitempty"`
	HP        int          `json:"hp"`
	MaxHP     int          `json:"max_hp"`
	Armor     int          `json:"armor"`
	Alive     bool         `json:"alive"`
	Connected bool         `json:"connected"`
	Submitted bool         `json:"submitted"`
	Ready     bool         `json:"ready"`
	Team      Team         `json:"team,omitempty"` // only when the viewer may know it
	Effects   []EffectView `json:"effects,omitempty"`
}

type AbilityView struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Category          Category   `json:"category"`
	Target            TargetKind `json:"target"`
	CooldownRemaining int        `json:"cooldown_remaining"`
}

type SelfView struct {
	ID        string        `json:"id"`
	Team      Team          `json:"team"`
	Eligible  bool          `json:"eligible"`
	Abilities []AbilityView `json:"abilities"`
}

type MonsterView struct {
	HP      int          `json:"hp"`
	MaxHP   int          `json:"max_hp"`
	Level   int          `json:"level"`
	Alive   bool         `json:"alive"`
	Effects []EffectView `json:"effects,omitempty"`
}

// RoomView is what one viewer is allowed to see of a room.
type RoomView struct {
	RoomID  string       `json:"room_id"`
	Phase   Phase        `json:"phase"`
	Round   int          `json:"round"`
	Result  GameResult   `json:"result,omitempty"`
	You     *SelfView    `json:"you,omitempty"`
	Players []PlayerView `json:"players"`
	Monster *MonsterView `json:"monster,omitempty"`
	Log     RoundLog     `json:"log"`
}

func effectViews(s EffectSet) []EffectView {
	var out []EffectView
	for _, e := range s {
		out = append(out, EffectView{Name: e.Name, Kind: e.Kind, Stacks: e.Stacks, Duration: e.Duration})
	}
	return out
}

// ViewFor builds the view for viewerID. Teams are revealed to the player
// themselves, between Warlocks, and to everyone once the game is over.
func (r *Room) ViewFor(viewerID string) RoomView {
	gs := r.gs
	v := RoomView{
		RoomID:  gs.RoomID,
		Phase:   gs.Phase,
		Round:   gs.Round,
		Result:  gs.Result,
		Players: make([]PlayerView, 0, len(gs.Players)),
		Log:     gs.LastLog.VisibleTo(viewerID),
	}
	viewer := gs.Player(viewerID)
	started := gs.Phase != PhaseLobby && gs.Phase != PhaseCharacterSelect

	for _, p := range gs.Players {
		pv := PlayerView{
			ID: p.ID, Name: p.Name, Race: p.Race, Class: p.Class,
			HP: p.HP, MaxHP: p.MaxHP, Armor: p.Armor, Alive: p.Alive,
			Connected: p.Connected, Submitted: p.Submitted, Ready: p.Ready,
			Effects: effectViews(p.Effects),
		}
		if started && viewer != nil && (viewer.ID == p.ID || (viewer.Team == TeamWarlock && p.Team == TeamWarlock)) {
			pv.Team = p.Team
		}
		if gs.Phase == PhaseGameOver {
			pv.Team = p.Team
		}
		v.Players = append(v.Players, pv)
	}

	if m := gs.Monster; m != nil {
		v.Monster = &MonsterView{HP: m.HP, MaxHP: m.MaxHP, Level: m.Level, Alive: m.Alive, Effects: effectViews(m.Effects)}
	}

	if viewer != nil && started {
		self := &SelfView{ID: viewer.ID, Team: viewer.Team, Eligible: r.IsPlayerEligibleThisRound(viewer.ID)}
		ids := append([]string(nil), viewer.Abilities...)
		if viewer.Team == TeamWarlock {
			var extra []string
			for id, ab := range r.cfg.Abilities {
				if ab.WarlockOnly {
					extra = append(extra, id)
				}
			}
			sort.Strings(extra)
			ids = append(ids, extra...)
		}
		for _, id := range ids {
			ab, ok := r.cfg.Ability(id)
			if !ok {
				continue
			}
			self.Abilities = append(self.Abilities, AbilityView{
				ID: ab.ID, Name: ab.Name, Category: ab.Category, Target: ab.Target,
				CooldownRemaining: viewer.CooldownRemaining(ab.ID, gs.Round),
			})
		}
		v.You = self
	}
	return v
}
