package admin

import "github.com/m3rciful/meterbot/internal/meter"

// Flow is the conversation name of the resident deletion states.
const Flow = "admin"

// Callback keys of the deletion buttons.
const (
	CallbackDeleteUser    = "admin_delete_user"
	CallbackDeleteConfirm = "admin_delete_confirm"
	CallbackDeleteCancel  = "admin_delete_cancel"
)

// AwaitDeleteApartment waits for the apartment whose resident is removed.
type AwaitDeleteApartment struct{}

// AwaitDeleteChoice waits for a resident to be picked.
type AwaitDeleteChoice struct {
	Apartment int
	Residents []meter.Resident
}

// AwaitDeleteConfirm holds the pending deletion until it is confirmed or cancelled.
type AwaitDeleteConfirm struct {
	Apartment int
	UserID    int64
	Name      string
}

func (AwaitDeleteApartment) Flow() string { return Flow }
func (AwaitDeleteChoice) Flow() string    { return Flow }
func (AwaitDeleteConfirm) Flow() string   { return Flow }

func (AwaitDeleteApartment) Step() string { return "delete.apartment" }
func (AwaitDeleteChoice) Step() string    { return "delete.choice" }
func (AwaitDeleteConfirm) Step() string   { return "delete.confirm" }
