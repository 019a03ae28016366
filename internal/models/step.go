package models

// Step is a position in the linear capture → describe → result sequence.
type Step int

const (
	StepCapturePlayground Step = iota
	StepCaptureToy
	StepDescribe
	StepResult
)

func (s Step) String() string {
	switch s {
	case StepCapturePlayground:
		return "capture-playground"
	case StepCaptureToy:
		return "capture-toy"
	case StepDescribe:
		return "describe"
	case StepResult:
		return "result"
	default:
		return "unknown"
	}
}

type RequestStatus string

const (
	RequestIdle    RequestStatus = "idle"
	RequestPending RequestStatus = "pending"
	RequestFailed  RequestStatus = "failed"
)

// Slot identifies one of the two capture sequences.
type Slot string

const (
	SlotPlayground Slot = "playground"
	SlotToy        Slot = "toy"
)

// CaptureStep returns the step during which the slot is captured.
func (s Slot) CaptureStep() Step {
	if s == SlotToy {
		return StepCaptureToy
	}
	return StepCapturePlayground
}
