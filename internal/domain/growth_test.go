package domain

import "testing"

func TestGainExperienceStandardLevelsUp(t *testing.T) {
	cs := defaultCoreStats()
	res := cs.GainExperience(250, GrowthStandard)

	// 250 xp from level 1: 100 to reach 2, 120 to reach 3, 30 left over.
	if res.LevelsGained != 2 || cs.Level != 3 {
		t.Errorf("levels gained = %d, level = %d, want 2 and 3", res.LevelsGained, cs.Level)
	}
	if cs.XP != 30 {
		t.Errorf("leftover xp = %d, want 30", cs.XP)
	}
	if cs.NextXP != 144 {
		t.Errorf("next threshold = %d, want 144", cs.NextXP)
	}
	if res.Level != cs.Level || res.XP != cs.XP || res.NextXP != cs.NextXP {
		t.Errorf("result out of sync with stats: %+v vs %+v", res, cs)
	}
}

func TestGainExperienceCustomAccumulatesOnly(t *testing.T) {
	cs := defaultCoreStats()
	res := cs.GainExperience(500, GrowthCustom)

	if res.LevelsGained != 0 || cs.Level != 1 {
		t.Errorf("custom growth levelled up: %+v", cs)
	}
	if cs.XP != 500 || cs.NextXP != 100 {
		t.Errorf("xp = %d, next = %d, want 500 and 100", cs.XP, cs.NextXP)
	}
}

func TestGainExperienceExactThreshold(t *testing.T) {
	cs := defaultCoreStats()
	res := cs.GainExperience(100, GrowthStandard)

	if res.LevelsGained != 1 || cs.Level != 2 || cs.XP != 0 {
		t.Errorf("exact threshold: %+v", cs)
	}
}
