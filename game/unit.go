package game

// MilitaryUnit is a unit as reported by the engine. Values are never mutated after decoding.
type MilitaryUnit struct {
	Identity   PlayerIdentity `json:"playerIdentity"`
	ID         int            `json:"id"`
	Direction  Direction      `json:"direction"`
	Soldiers   int            `json:"numberOfSoldiers"`
	Morale     int            `json:"morale"`
	Leadership int            `json:"leadership"`
}

func (u MilitaryUnit) IsEnemyOf(side PlayerIdentity) bool {
	return u.Identity != side
}
