package buffer

// Step is one environment transition as seen by the learner. EpisodeStart
// marks the first observation of an episode.
type Step struct {
	Obs          []float64 `json:"obs"`
	Action       int       `json:"action"`
	Reward       float64   `json:"reward"`
	LogProb      float64   `json:"log_prob"`
	Value        float64   `json:"value"`
	EpisodeStart bool      `json:"episode_start"`
}
