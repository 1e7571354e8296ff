package registration

import "github.com/m3rciful/meterbot/internal/meter"

// Flow is the conversation name registration states report.
const Flow = "registration"

// Draft holds the apartment and the sections completed so far.
type Draft struct {
	Apartment int
	Sections  []meter.Section
}

func (d Draft) with(sec meter.Section) Draft {
	sections := make([]meter.Section, 0, len(d.Sections)+1)
	sections = append(sections, d.Sections...)
	return Draft{Apartment: d.Apartment, Sections: append(sections, sec)}
}

// AwaitApartment waits for the apartment number.
type AwaitApartment struct{}

// AwaitCount waits for the number of meters of Type.
type AwaitCount struct {
	Draft Draft
	Type  meter.Type
}

// AwaitSerials waits for Count whitespace separated serial numbers.
type AwaitSerials struct {
	Draft Draft
	Type  meter.Type
	Count int
}

// AwaitDescriptions collects one description per serial; Index is the serial
// currently being described.
type AwaitDescriptions struct {
	Draft        Draft
	Type         meter.Type
	Serials      []string
	Descriptions []string
	Index        int
}

func (AwaitApartment) Flow() string    { return Flow }
func (AwaitCount) Flow() string        { return Flow }
func (AwaitSerials) Flow() string      { return Flow }
func (AwaitDescriptions) Flow() string { return Flow }

func (AwaitApartment) Step() string      { return "apartment" }
func (s AwaitCount) Step() string        { return string(s.Type) + ".count" }
func (s AwaitSerials) Step() string      { return string(s.Type) + ".serials" }
func (s AwaitDescriptions) Step() string { return string(s.Type) + ".descriptions" }
