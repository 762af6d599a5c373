package parse

import "github.com/convocatoriaspro/convocatorias/internal/model"

// Outcome is the result of parsing model output: Parsed or Failed.
type Outcome interface {
	isOutcome()
}

// Parsed holds the records normalized from the model output.
type Parsed struct {
	Records []model.ResultRecord
}

// Failed keeps the raw text and the reason no records could be produced.
type Failed struct {
	Raw    string
	Reason string
}

func (Parsed) isOutcome() {}
func (Failed) isOutcome() {}
