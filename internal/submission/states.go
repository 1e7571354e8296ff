package submission

import "github.com/m3rciful/meterbot/internal/meter"

// Flow is the conversation name submission states report.
const Flow = "submission"

// Callback keys of the checklist buttons.
const (
	CallbackType   = "submit_type"
	CallbackFinish = "submit_finish"
)

// Checklist shows which meter types already have readings for Period.
type Checklist struct {
	Apartment int
	Period    meter.Period
}

// AwaitValue waits for the value of Meters[Index]. Previous is the latest
// reading of that serial from an earlier period, if any.
type AwaitValue struct {
	Apartment int
	Period    meter.Period
	Type      meter.Type
	Meters    []meter.Info
	Index     int
	Previous  *meter.Reading
}

func (Checklist) Flow() string  { return Flow }
func (AwaitValue) Flow() string { return Flow }

func (Checklist) Step() string    { return "checklist" }
func (s AwaitValue) Step() string { return string(s.Type) + ".value" }

func (s AwaitValue) current() meter.Info { return s.Meters[s.Index] }
