package warlock

import (
	"errors"
	"testing"
)

func poison(duration int) StatusEffect {
	return StatusEffect{
		Name: "poison", Kind: Debuff, Stacking: StackStack, MaxStacks: 3, Duration: duration,
		Modifiers: Modifiers{DamagePerRound: 4},
	}
}

func TestEffectSet_DurationTicks(t *testing.T) {
	var s EffectSet
	if err := s.Apply(true, StatusEffect{Name: "shielded", Kind: Buff, Duration: 2}, 1); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// Fresh effects skip the tick of the round they were applied in.
	s.Tick(1)
	if e := s.Query("shielded"); e == nil || e.Duration != 2 {
		t.Fatalf("after round 1 tick: got %+v, want duration 2", e)
	}
	s.Tick(2)
	if e := s.Query("shielded"); e == nil || e.Duration != 1 {
		t.Fatalf("after round 2 tick: got %+v, want duration 1", e)
	}
	res := s.Tick(3)
	if s.Query("shielded") != nil {
		t.Fatal("effect should expire after its duration")
	}
	if len(res.Expired) != 1 || res.Expired[0].Name != "shielded" {
		t.Errorf("expected shielded in expired list, got %+v", res.Expired)
	}
}

func TestEffectSet_ApplyRejections(t *testing.T) {
	var s EffectSet
	if err := s.Apply(false, poison(2), 1); !errors.Is(err, ErrEntityDead) {
		t.Errorf("dead entity: got %v, want ErrEntityDead", err)
	}
	if err := s.Apply(true, poison(0), 1); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("zero duration: got %v, want ErrInvalidDuration", err)
	}

	immune := StatusEffect{Name: "moon_ward", Kind: Buff, Duration: 2, Modifiers: Modifiers{DebuffImmune: true}}
	if err := s.Apply(true, immune, 1); err != nil {
		t.Fatalf("apply ward: %v", err)
	}
	if err := s.Apply(true, poison(2), 1); !errors.Is(err, ErrImmune) {
		t.Errorf("debuff on immune: got %v, want ErrImmune", err)
	}
	if len(s) != 1 {
		t.Errorf("expected only the ward, got %d effects", len(s))
	}
}

func TestEffectSet_StackingPolicies(t *testing.T) {
	t.Run("stack", func(t *testing.T) {
		var s EffectSet
		for i := 0; i < 5; i++ {
			if err := s.Apply(true, poison(3), 1); err != nil {
				t.Fatalf("apply %d: %v", i, err)
			}
		}
		e := s.Query("poison")
		if e.Stacks != 3 {
			t.Errorf("stacks = %d, want capped at 3", e.Stacks)
		}
		if len(s) != 1 {
			t.Errorf("stacking must not duplicate entries, got %d", len(s))
		}
	})

	t.Run("refresh", func(t *testing.T) {
		var s EffectSet
		weak := StatusEffect{Name: "weakened", Kind: Debuff, Duration: 2, Modifiers: Modifiers{DamageMultiplier: 0.7}}
		s.Apply(true, weak, 1)
		s.Tick(2)
		if err := s.Apply(true, weak, 2); err != nil {
			t.Fatalf("reapply: %v", err)
		}
		e := s.Query("weakened")
		if e.Duration != 2 || e.Stacks != 1 {
			t.Errorf("refresh: got duration %d stacks %d, want 2 and 1", e.Duration, e.Stacks)
		}
		if got := s.DamageMultiplier(); got != 0.7 {
			t.Errorf("refresh must not stack magnitude: multiplier %v", got)
		}
	})

	t.Run("reject", func(t *testing.T) {
		var s EffectSet
		ds := StatusEffect{Name: "divine_shield", Kind: Buff, Stacking: StackReject, Duration: 1}
		if err := s.Apply(true, ds, 1); err != nil {
			t.Fatalf("first apply: %v", err)
		}
		if err := s.Apply(true, ds, 1); !errors.Is(err, ErrAlreadyActive) {
			t.Errorf("second apply: got %v, want ErrAlreadyActive", err)
		}
	})
}

func TestEffectSet_PeriodicScalesWithStacks(t *testing.T) {
	var s EffectSet
	s.Apply(true, poison(3), 1)
	s.Apply(true, poison(3), 1)

	if res := s.Tick(1); res.Damage != 0 {
		t.Errorf("fresh poison should not tick in its round, got %d", res.Damage)
	}
	if res := s.Tick(2); res.Damage != 8 {
		t.Errorf("two stacks of 4 should deal 8, got %d", res.Damage)
	}
}

func TestEffectSet_ClearNegative(t *testing.T) {
	var s EffectSet
	s.Apply(true, poison(3), 1)
	s.Apply(true, StatusEffect{Name: "empowered", Kind: Buff, Duration: 2, Modifiers: Modifiers{DamageMultiplier: 1.5}}, 1)
	s.Apply(true, StatusEffect{Name: "stunned", Kind: Debuff, Duration: 1, Modifiers: Modifiers{Stun: true}}, 1)

	removed := s.ClearNegative()
	if len(removed) != 2 {
		t.Fatalf("expected 2 debuffs removed, got %d", len(removed))
	}
	if s.Stunned() {
		t.Error("stun should be cleared")
	}
	if s.Query("empowered") == nil {
		t.Error("buffs must survive a cleanse")
	}
}

func TestEffectSet_TickDropsInvalidDuration(t *testing.T) {
	s := EffectSet{{Name: "broken", Kind: Buff, Duration: -1, Stacks: 1}}
	s.Tick(5)
	if len(s) != 0 {
		t.Errorf("effect with negative duration should be dropped, got %+v", s)
	}
}

func TestEffectSet_ModifierAggregation(t *testing.T) {
	s := EffectSet{
		{Name: "a", Kind: Buff, Duration: 1, Stacks: 1, Modifiers: Modifiers{ArmorDelta: 5, DamageReduction: 0.5}},
		{Name: "b", Kind: Buff, Duration: 1, Stacks: 1, Modifiers: Modifiers{ArmorDelta: 3, DamageReduction: 1.5}},
		{Name: "c", Kind: Debuff, Duration: 1, Stacks: 1, Modifiers: Modifiers{DamageTakenMultiplier: 1.25}},
	}
	if got := s.ArmorBonus(); got != 8 {
		t.Errorf("ArmorBonus = %d, want 8", got)
	}
	if got := s.Reduction(); got != 1 {
		t.Errorf("Reduction = %v, want capped at 1", got)
	}
	if got := s.DamageTakenMultiplier(); got != 1.25 {
		t.Errorf("DamageTakenMultiplier = %v, want 1.25", got)
	}
}

func TestEffectSet_ModifiersScaleWithStacks(t *testing.T) {
	var s EffectSet
	sunder := StatusEffect{
		Name: "sunder", Kind: Debuff, Stacking: StackStack, MaxStacks: 3, Duration: 2,
		Modifiers: Modifiers{ArmorDelta: -2, DamageTakenMultiplier: 1.5},
	}
	for i := 0; i < 2; i++ {
		if err := s.Apply(true, sunder, 1); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.ArmorBonus(); got != -4 {
		t.Errorf("ArmorBonus = %d, want -4 for two stacks", got)
	}
	if got := s.DamageTakenMultiplier(); got != 2.25 {
		t.Errorf("DamageTakenMultiplier = %v, want 1.5 squared", got)
	}

	rally := EffectSet{{Name: "rally", Kind: Buff, Duration: 1, Stacks: 3, Modifiers: Modifiers{DamageMultiplier: 2}}}
	if got := rally.DamageMultiplier(); got != 8 {
		t.Errorf("DamageMultiplier = %v, want 8 for three stacks", got)
	}
	if got := (EffectSet{{Name: "legacy", Duration: 1, Modifiers: Modifiers{ArmorDelta: 3}}}).ArmorBonus(); got != 3 {
		t.Errorf("zero stack count should count once, got %d", got)
	}
}
