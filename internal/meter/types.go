// Package meter holds the utility-meter domain: meter types, reporting periods,
// the records persisted per apartment and the validation applied to resident input.
package meter

// Type is one of the four fixed utility categories.
type Type string

const (
	Electricity Type = "electricity"
	Heat        Type = "heat"
	HotWater    Type = "hot_water"
	ColdWater   Type = "cold_water"
)

type typeInfo struct {
	unit     string
	title    string
	minCount int
	maxCount int
}

var types = map[Type]typeInfo{
	HotWater:    {unit: "m3", title: "Hot water", minCount: 1, maxCount: 3},
	ColdWater:   {unit: "m3", title: "Cold water", minCount: 1, maxCount: 3},
	Electricity: {unit: "kWh", title: "Electricity", minCount: 1, maxCount: 3},
	Heat:        {unit: "Gcal", title: "Heat", minCount: 0, maxCount: 1},
}

// order is the sequence residents walk through during registration and the
// order of the submission checklist.
var order = []Type{HotWater, ColdWater, Electricity, Heat}

// Types returns all meter types in registration order.
func Types() []Type {
	return append([]Type(nil), order...)
}

// ParseType resolves a stored type name.
func ParseType(name string) (Type, bool) {
	t := Type(name)
	_, ok := types[t]
	return t, ok
}

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	_, ok := types[t]
	return ok
}

// Unit is the display unit seeded into meter_types.
func (t Type) Unit() string { return types[t].unit }

// Title is the human readable name.
func (t Type) Title() string {
	if info, ok := types[t]; ok {
		return info.title
	}
	return string(t)
}

// CountRange returns the inclusive number of physical meters an apartment may declare.
func (t Type) CountRange() (int, int) {
	info := types[t]
	return info.minCount, info.maxCount
}

// Next returns the type that follows t in registration order.
func (t Type) Next() (Type, bool) {
	for i, cur := range order {
		if cur == t && i+1 < len(order) {
			return order[i+1], true
		}
	}
	return "", false
}

// Seed is a meter_types row inserted when the table is empty.
type Seed struct {
	Name string `db:"name"`
	Unit string `db:"unit"`
}

// Seeds lists the reference rows for meter_types.
func Seeds() []Seed {
	return []Seed{
		{Name: string(Electricity), Unit: Electricity.Unit()},
		{Name: string(Heat), Unit: Heat.Unit()},
		{Name: string(HotWater), Unit: HotWater.Unit()},
		{Name: string(ColdWater), Unit: ColdWater.Unit()},
	}
}
