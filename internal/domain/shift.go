package domain

type ShiftState string

const (
	ShiftActive    ShiftState = "active"
	ShiftFinalized ShiftState = "finalized"
	ShiftApproved  ShiftState = "approved"
	ShiftRejected  ShiftState = "rejected"
)

// PhotoType distinguishes the start-of-shift photo from the end-of-shift one.
type PhotoType string

const (
	PhotoStart PhotoType = "start"
	PhotoEnd   PhotoType = "end"
)

func (t PhotoType) Valid() bool {
	return t == PhotoStart || t == PhotoEnd
}
