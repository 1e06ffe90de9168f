package warlock

import (
	"errors"
	"fmt"
)

// Category fixes when an ability resolves within a round.
type Category string

const (
	CategoryDetection Category = "detection"
	CategoryControl   Category = "control"
	CategoryDefense   Category = "defense"
	CategoryHeal      Category = "heal"
	CategoryAttack    Category = "attack"
	CategorySpecial   Category = "special"
)

var categoryOrder = map[Category]int{
	CategoryDetection: 0,
	CategoryControl:   1,
	CategoryDefense:   2,
	CategoryHeal:      3,
	CategoryAttack:    4,
	CategorySpecial:   5,
}

// Priority returns the category's position in resolution order, or -1 if unknown.
func (c Category) Priority() int {
	p, ok := categoryOrder[c]
	if !ok {
		return -1
	}
	return p
}

// TargetKind describes which entities an ability may target.
type TargetKind string

const (
	TargetSelf       TargetKind = "self"
	TargetPlayer     TargetKind = "player"
	TargetMonster    TargetKind = "monster"
	TargetAny        TargetKind = "any"
	TargetAllEnemies TargetKind = "all_enemies" // monster and every other living player
	TargetAllAllies  TargetKind = "all_allies"  // every living player, actor included
)

// Multi reports whether the ability hits a set rather than a chosen target.
func (k TargetKind) Multi() bool {
	return k == TargetAllEnemies || k == TargetAllAllies
}

// Kind selects the handler that computes an ability's outcome.
type Kind string

const (
	KindAttack        Kind = "attack"
	KindMultiAttack   Kind = "multi_attack"
	KindHeal          Kind = "heal"
	KindMultiHeal     Kind = "multi_heal"
	KindShield        Kind = "shield"
	KindBuff          Kind = "buff"
	KindDebuff        Kind = "debuff"
	KindStun          Kind = "stun"
	KindDetect        Kind = "detect"
	KindCleanse       Kind = "cleanse"
	KindRage          Kind = "rage"
	KindCorrupt       Kind = "corrupt"
	KindMonsterAttack Kind = "monster_attack"
	KindPass          Kind = "pass"
)

// EffectTemplate describes the effect an ability applies.
type EffectTemplate struct {
	Name      string      `json:"name"`
	Kind      EffectKind  `json:"kind"`
	Stacking  StackPolicy `json:"stacking,omitempty"`
	MaxStacks int         `json:"max_stacks,omitempty"`
	Duration  int         `json:"duration"`
	Modifiers Modifiers   `json:"modifiers"`
}

// Instance builds a fresh effect attributed to source.
func (t EffectTemplate) Instance(source string) StatusEffect {
	return StatusEffect{
		Name:      t.Name,
		Kind:      t.Kind,
		Stacking:  t.Stacking,
		Stacks:    1,
		MaxStacks: t.MaxStacks,
		Duration:  t.Duration,
		SourceID:  source,
		Modifiers: t.Modifiers,
	}
}

// AbilityDef is the static definition of an ability.
type AbilityDef struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Kind        Kind               `json:"kind"`
	Category    Category           `json:"category"`
	Target      TargetKind         `json:"target"`
	Magnitude   float64            `json:"magnitude,omitempty"`
	Cooldown    int                `json:"cooldown,omitempty"`
	Effect      *EffectTemplate    `json:"effect,omitempty"`
	Params      map[string]float64 `json:"params,omitempty"`
	WarlockOnly bool               `json:"warlock_only,omitempty"`
	Hidden      bool               `json:"hidden,omitempty"` // log entries go only to the actor
}

// Param returns a numeric parameter or def when unset.
func (a AbilityDef) Param(name string, def float64) float64 {
	if v, ok := a.Params[name]; ok {
		return v
	}
	return def
}

type ClassDef struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Abilities  []string `json:"abilities"`
	HPBonus    int      `json:"hp_bonus,omitempty"`
	ArmorBonus int      `json:"armor_bonus,omitempty"`
	DamageMod  float64  `json:"damage_mod,omitempty"`
}

type RaceDef struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	RacialAbility  string   `json:"racial_ability,omitempty"`
	HPBonus        int      `json:"hp_bonus,omitempty"`
	ArmorBonus     int      `json:"armor_bonus,omitempty"`
	AllowedClasses []string `json:"allowed_classes,omitempty"` // empty allows every class
}

// Allows reports whether the race may play the class.
func (r RaceDef) Allows(class string) bool {
	if len(r.AllowedClasses) == 0 {
		return true
	}
	for _, c := range r.AllowedClasses {
		if c == class {
			return true
		}
	}
	return false
}

type CorruptionConfig struct {
	ContactChance      float64 `json:"contact_chance"`
	MaxWarlockFraction float64 `json:"max_warlock_fraction"` // 0 disables the cap
	MaxPerRound        int     `json:"max_per_round"`        // 0 disables the cap
	WarlockParity      bool    `json:"warlock_parity"`
}

type MonsterConfig struct {
	BaseHP       int     `json:"base_hp"`
	Attack       int     `json:"attack"`
	Armor        int     `json:"armor"`
	AbilityID    string  `json:"ability_id"`
	Respawn      bool    `json:"respawn"`
	HPGrowth     float64 `json:"hp_growth"`
	AttackGrowth float64 `json:"attack_growth"`
}

// Config is the immutable rules snapshot a room resolves with.
type Config struct {
	Abilities         map[string]AbilityDef `json:"abilities"`
	Classes           map[string]ClassDef   `json:"classes"`
	Races             map[string]RaceDef    `json:"races"`
	Threat            ThreatConfig          `json:"threat"`
	Corruption        CorruptionConfig      `json:"corruption"`
	Monster           MonsterConfig         `json:"monster"`
	CoordinationBonus float64               `json:"coordination_bonus"`
	MinPlayers        int                   `json:"min_players"`
	MaxPlayers        int                   `json:"max_players"`
	WarlockCount      int                   `json:"warlock_count"`
	BaseHP            int                   `json:"base_hp"`
	BaseArmor         int                   `json:"base_armor"`
}

// Ability looks up an ability definition.
func (c *Config) Ability(id string) (AbilityDef, bool) {
	a, ok := c.Abilities[id]
	return a, ok
}

// Validate checks the snapshot for dangling references and out-of-range tuning.
func (c *Config) Validate() error {
	var errs []error
	for id, a := range c.Abilities {
		if a.ID != id {
			errs = append(errs, fmt.Errorf("ability %s: id mismatch %q", id, a.ID))
		}
		if a.Category.Priority() < 0 {
			errs = append(errs, fmt.Errorf("ability %s: unknown category %q", id, a.Category))
		}
		if a.Effect != nil && a.Effect.Duration <= 0 {
			errs = append(errs, fmt.Errorf("ability %s: effect duration must be positive", id))
		}
		if a.Cooldown < 0 {
			errs = append(errs, fmt.Errorf("ability %s: negative cooldown", id))
		}
	}
	for id, cl := range c.Classes {
		for _, a := range cl.Abilities {
			if _, ok := c.Abilities[a]; !ok {
				errs = append(errs, fmt.Errorf("class %s: unknown ability %s", id, a))
			}
		}
	}
	for id, r := range c.Races {
		if r.RacialAbility != "" {
			if _, ok := c.Abilities[r.RacialAbility]; !ok {
				errs = append(errs, fmt.Errorf("race %s: unknown ability %s", id, r.RacialAbility))
			}
		}
		for _, cl := range r.AllowedClasses {
			if _, ok := c.Classes[cl]; !ok {
				errs = append(errs, fmt.Errorf("race %s: unknown class %s", id, cl))
			}
		}
	}
	if _, ok := c.Abilities[c.Monster.AbilityID]; !ok {
		errs = append(errs, fmt.Errorf("monster: unknown ability %s", c.Monster.AbilityID))
	}
	if c.Threat.DecayFactor <= 0 || c.Threat.DecayFactor > 1 {
		errs = append(errs, errors.New("threat: decay factor must be in (0, 1]"))
	}
	if c.Threat.RandomnessFactor < 0 {
		errs = append(errs, errors.New("threat: randomness factor must be non-negative"))
	}
	if c.CoordinationBonus < 0 {
		errs = append(errs, errors.New("coordination bonus must be non-negative"))
	}
	if c.MinPlayers < 2 || c.MaxPlayers < c.MinPlayers {
		errs = append(errs, fmt.Errorf("player bounds %d..%d invalid", c.MinPlayers, c.MaxPlayers))
	}
	if c.WarlockCount < 1 || c.WarlockCount >= c.MinPlayers {
		errs = append(errs, fmt.Errorf("warlock count %d invalid for %d minimum players", c.WarlockCount, c.MinPlayers))
	}
	if c.BaseHP <= 0 || c.Monster.BaseHP <= 0 {
		errs = append(errs, errors.New("base hp must be positive"))
	}
	return errors.Join(errs...)
}

// DefaultConfig returns the stock ruleset.
func DefaultConfig() *Config {
	return &Config{
		Abilities:         defaultAbilities(),
		Classes:           defaultClasses(),
		Races:             defaultRaces(),
		CoordinationBonus: 0.2,
		MinPlayers:        3,
		MaxPlayers:        8,
		WarlockCount:      1,
		BaseHP:            100,
		BaseArmor:         0,
		Threat: ThreatConfig{
			DamageMultiplier:  1.0,
			HealingMultiplier: 0.5,
			AbilityThreat:     5,
			DecayFactor:       0.75,
			RandomnessFactor:  0.2,
		},
		Corruption: CorruptionConfig{
			ContactChance:      0.1,
			MaxWarlockFraction: 0.5,
			MaxPerRound:        1,
		},
		Monster: MonsterConfig{
			BaseHP:       200,
			Attack:       15,
			Armor:        3,
			AbilityID:    "claw",
			Respawn:      true,
			HPGrowth:     1.25,
			AttackGrowth: 1.2,
		},
	}
}

func defaultAbilities() map[string]AbilityDef {
	list := []AbilityDef{
		{ID: "slash", Name: "Slash", Kind: KindAttack, Category: CategoryAttack, Target: TargetAny, Magnitude: 20},
		{ID: "fireball", Name: "Fireball", Kind: KindAttack, Category: CategoryAttack, Target: TargetAny, Magnitude: 30, Cooldown: 2},
		{ID: "meteor", Name: "Meteor", Kind: KindMultiAttack, Category: CategoryAttack, Target: TargetAllEnemies, Magnitude: 12, Cooldown: 4},
		{ID: "poison_strike", Name: "Poison Strike", Kind: KindAttack, Category: CategoryAttack, Target: TargetAny, Magnitude: 10, Cooldown: 2,
			Effect: &EffectTemplate{Name: "poison", Kind: Debuff, Stacking: StackStack, MaxStacks: 3, Duration: 3, Modifiers: Modifiers{DamagePerRound: 4}}},
		{ID: "heal", Name: "Heal", Kind: KindHeal, Category: CategoryHeal, Target: TargetPlayer, Magnitude: 25},
		{ID: "rejuvenation", Name: "Rejuvenation", Kind: KindMultiHeal, Category: CategoryHeal, Target: TargetAllAllies, Magnitude: 10, Cooldown: 3,
			Effect: &EffectTemplate{Name: "regeneration", Kind: Buff, Duration: 2, Modifiers: Modifiers{HealPerRound: 5}}},
		{ID: "shield", Name: "Shield", Kind: KindShield, Category: CategoryDefense, Target: TargetPlayer, Cooldown: 1,
			Effect: &EffectTemplate{Name: "shielded", Kind: Buff, Duration: 1, Modifiers: Modifiers{ArmorDelta: 5}}},
		{ID: "divine_shield", Name: "Divine Shield", Kind: KindShield, Category: CategoryDefense, Target: TargetSelf, Cooldown: 4,
			Effect: &EffectTemplate{Name: "divine_shield", Kind: Buff, Stacking: StackReject, Duration: 1, Modifiers: Modifiers{DamageReduction: 1}}},
		{ID: "empower", Name: "Empower", Kind: KindBuff, Category: CategoryDefense, Target: TargetSelf, Cooldown: 3,
			Effect: &EffectTemplate{Name: "empowered", Kind: Buff, Duration: 2, Modifiers: Modifiers{DamageMultiplier: 1.5}}},
		{ID: "weaken", Name: "Weaken", Kind: KindDebuff, Category: CategoryControl, Target: TargetAny, Cooldown: 2,
			Effect: &EffectTemplate{Name: "weakened", Kind: Debuff, Duration: 2, Modifiers: Modifiers{DamageMultiplier: 0.7}}},
		{ID: "expose", Name: "Expose", Kind: KindDebuff, Category: CategoryControl, Target: TargetAny, Cooldown: 2,
			Effect: &EffectTemplate{Name: "vulnerable", Kind: Debuff, Duration: 2, Modifiers: Modifiers{DamageTakenMultiplier: 1.25}}},
		{ID: "bash", Name: "Shield Bash", Kind: KindStun, Category: CategoryControl, Target: TargetAny, Magnitude: 8, Cooldown: 3,
			Effect: &EffectTemplate{Name: "stunned", Kind: Debuff, Stacking: StackRefresh, Duration: 1, Modifiers: Modifiers{Stun: true}}},
		{ID: "eye_of_fate", Name: "Eye of Fate", Kind: KindDetect, Category: CategoryDetection, Target: TargetPlayer, Cooldown: 3,
			Params: map[string]float64{"backlash": 0.1}},
		{ID: "purify", Name: "Purify", Kind: KindCleanse, Category: CategoryDefense, Target: TargetPlayer, Magnitude: 5, Cooldown: 2},
		{ID: "blood_rage", Name: "Blood Rage", Kind: KindRage, Category: CategorySpecial, Target: TargetSelf, Cooldown: 5,
			Effect: &EffectTemplate{Name: "enraged", Kind: Buff, Duration: 2, Modifiers: Modifiers{DamageMultiplier: 1.3}}},
		{ID: "stone_skin", Name: "Stone Skin", Kind: KindShield, Category: CategoryDefense, Target: TargetSelf, Cooldown: 5,
			Effect: &EffectTemplate{Name: "stone_skin", Kind: Buff, Duration: 2, Modifiers: Modifiers{ArmorDelta: 8}}},
		{ID: "moon_ward", Name: "Moon Ward", Kind: KindBuff, Category: CategoryDefense, Target: TargetSelf, Cooldown: 6,
			Effect: &EffectTemplate{Name: "moon_ward", Kind: Buff, Duration: 2, Modifiers: Modifiers{DebuffImmune: true, CorruptionImmune: true}}},
		{ID: "second_wind", Name: "Second Wind", Kind: KindHeal, Category: CategoryHeal, Target: TargetSelf, Magnitude: 30, Cooldown: 5},
		{ID: "corrupt", Name: "Corrupt", Kind: KindCorrupt, Category: CategorySpecial, Target: TargetPlayer, Cooldown: 3,
			WarlockOnly: true, Hidden: true, Params: map[string]float64{"chance": 0.5}},
		{ID: "claw", Name: "Claw", Kind: KindMonsterAttack, Category: CategoryAttack, Target: TargetPlayer},
	}
	m := make(map[string]AbilityDef, len(list))
	for _, a := range list {
		m[a.ID] = a
	}
	return m
}

func defaultClasses() map[string]ClassDef {
	list := []ClassDef{
		{ID: "warrior", Name: "Warrior", Abilities: []string{"slash", "bash", "shield"}, HPBonus: 30, ArmorBonus: 2, DamageMod: 1.0},
		{ID: "priest", Name: "Priest", Abilities: []string{"slash", "heal", "rejuvenation", "purify"}, DamageMod: 0.8},
		{ID: "wizard", Name: "Wizard", Abilities: []string{"slash", "fireball", "meteor", "weaken"}, HPBonus: -10, DamageMod: 1.1},
		{ID: "oracle", Name: "Oracle", Abilities: []string{"slash", "eye_of_fate", "heal"}, DamageMod: 0.9},
		{ID: "paladin", Name: "Paladin", Abilities: []string{"slash", "divine_shield", "heal", "empower"}, HPBonus: 20, ArmorBonus: 1, DamageMod: 1.0},
		{ID: "rogue", Name: "Rogue", Abilities: []string{"slash", "poison_strike", "expose"}, DamageMod: 1.2},
	}
	m := make(map[string]ClassDef, len(list))
	for _, c := range list {
		m[c.ID] = c
	}
	return m
}

func defaultRaces() map[string]RaceDef {
	list := []RaceDef{
		{ID: "human", Name: "Human", RacialAbility: "second_wind"},
		{ID: "dwarf", Name: "Dwarf", RacialAbility: "stone_skin", HPBonus: 10, ArmorBonus: 1,
			AllowedClasses: []string{"warrior", "priest", "paladin", "rogue"}},
		{ID: "elf", Name: "Elf", RacialAbility: "moon_ward", HPBonus: -5,
			AllowedClasses: []string{"wizard", "oracle", "priest", "rogue"}},
		{ID: "orc", Name: "Orc", RacialAbility: "blood_rage", HPBonus: 15,
			AllowedClasses: []string{"warrior", "rogue", "oracle"}},
	}
	m := make(map[string]RaceDef, len(list))
	for _, r := range list {
		m[r.ID] = r
	}
	return m
}
