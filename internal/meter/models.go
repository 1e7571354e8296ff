package meter

import "time"

// Profile is the stored identity of a registered resident.
type Profile struct {
	UserID    int64   `db:"user_id"`
	Apartment int     `db:"apartment_number"`
	FirstName string  `db:"first_name"`
	LastName  *string `db:"last_name"`
}

// Section collects the physical meters of one type declared during registration.
// Descriptions are positional: Descriptions[i] labels Serials[i].
type Section struct {
	Type         Type
	Serials      []string
	Descriptions []string
}

// Registration is everything gathered by the registration conversation.
type Registration struct {
	UserID    int64
	FirstName string
	LastName  *string
	Apartment int
	Sections  []Section
}

// Info is a physical meter of an apartment as shown to residents.
type Info struct {
	SerialID     int64  `db:"serial_id"`
	Type         Type   `db:"name"`
	SerialNumber string `db:"serial_number"`
	Description  string `db:"description"`
}

// Submission is a single reading entered by a resident.
type Submission struct {
	UserID       int64
	Apartment    int
	Type         Type
	SerialNumber string
	Value        float64
}

// Reading is a stored value for one serial.
type Reading struct {
	Value       float64   `db:"value"`
	ReadingDate time.Time `db:"reading_date"`
	Period      string    `db:"period"`
}

// ReadingRow is one line of the period export.
type ReadingRow struct {
	Apartment    int       `db:"apartment_number"`
	Type         Type      `db:"name"`
	SerialNumber string    `db:"serial_number"`
	Value        float64   `db:"value"`
	ReadingDate  time.Time `db:"reading_date"`
}

// Resident is a user row listed for admin deletion.
type Resident struct {
	UserID    int64  `db:"user_id"`
	FirstName string `db:"first_name"`
}
