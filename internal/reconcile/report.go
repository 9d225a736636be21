package reconcile

import "fmt"

const maxExamples = 10

// Report summarizes one reconciliation.
type Report struct {
	CollectionID string     `json:"collection_id"`
	Added        int        `json:"added"`
	Removed      int        `json:"removed"`
	Reordered    int        `json:"reordered"`
	FinalSize    int        `json:"final_size"`
	Validation   Validation `json:"validation"`
}

// Validation compares the persisted members with the target after the
// mutations were applied. Examples hold at most ten labels per category.
type Validation struct {
	Matching        int      `json:"matching"`
	Missing         int      `json:"missing"`
	Extra           int      `json:"extra"`
	MissingExamples []string `json:"missing_examples,omitempty"`
	ExtraExamples   []string `json:"extra_examples,omitempty"`
}

func (v Validation) OK() bool {
	return v.Missing == 0 && v.Extra == 0
}

// CollaboratorError is a collection store failure. It aborts the
// reconciliation of one collection.
type CollaboratorError struct {
	Op           string
	CollectionID string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collection %s: %s: %v", e.CollectionID, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
