package domain

// standardGrowthMultiplier raises the next-level threshold after each
// level-up under the standard growth system.
const standardGrowthMultiplier = 1.2

// GrowthResult reports what one experience award did.
type GrowthResult struct {
	Amount       int
	LevelsGained int
	Level        int
	XP           int
	NextXP       int
	System       string
}

// GainExperience awards experience under the given growth system. Standard
// growth rolls overflow XP into level-ups, raising the threshold each
// level; custom growth only accumulates XP and leaves level-ups to a table
// ruling.
func (cs *CoreStats) GainExperience(amount int, system string) GrowthResult {
	res := GrowthResult{Amount: amount, System: system}
	cs.XP += amount
	if system != GrowthCustom {
		for cs.NextXP > 0 && cs.XP >= cs.NextXP {
			cs.XP -= cs.NextXP
			cs.Level++
			res.LevelsGained++
			cs.NextXP = int(float64(cs.NextXP) * standardGrowthMultiplier)
		}
	}
	res.Level = cs.Level
	res.XP = cs.XP
	res.NextXP = cs.NextXP
	return res
}
