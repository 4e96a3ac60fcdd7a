package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// PolicyRecord is a trained Q-table with the action set that defines its
// columns. Table holds the dense matrix in gonum binary form.
type PolicyRecord struct {
	VersionedRecord
	ID           string    `json:"id"`
	RunID        string    `json:"run_id,omitempty"`
	Actions      []float64 `json:"actions"`
	States       int       `json:"states"`
	Table        []byte    `json:"table,omitempty"`
	CreatedAtUTC string    `json:"created_at_utc"`
}

// RunRecord summarizes one training run.
type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	PolicyID       string    `json:"policy_id"`
	Seed           int64     `json:"seed"`
	Episodes       int       `json:"episodes"`
	Successes      int       `json:"successes"`
	VisitedStates  int       `json:"visited_states"`
	FinalEpsilon   float64   `json:"final_epsilon"`
	MeanReturn     float64   `json:"mean_return"`
	TailMeanReturn float64   `json:"tail_mean_return"`
	Returns        []float64 `json:"returns,omitempty"`
	CreatedAtUTC   string    `json:"created_at_utc"`
}

// EvaluationRecord is the score of a stored policy in one evaluation mode.
type EvaluationRecord struct {
	VersionedRecord
	PolicyID      string  `json:"policy_id"`
	Mode          string  `json:"mode"`
	Fitness       float64 `json:"fitness"`
	Successes     int     `json:"successes"`
	Episodes      int     `json:"episodes"`
	MeanStopError float64 `json:"mean_stop_error"`
	MeanTicks     float64 `json:"mean_ticks"`
}
