package types

// CallRecord is one call queued for analysis. Either Transcript or AudioURL
// is set; a transcript wins when both are.
type CallRecord struct {
	CallID     string `json:"call_id"`
	AudioURL   string `json:"audio_url,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

func (r CallRecord) Empty() bool { return r.AudioURL == "" && r.Transcript == "" }
