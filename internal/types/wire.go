package types

// ResultMessage is the JSON shape broadcast to websocket clients for each
// emitted result. Pixel data stays out of the message; clients that want the
// frame itself ask the source, not the monitor.
type ResultMessage struct {
	Type            string             `json:"type"`
	FrameIndex      int64              `json:"frame_index"`
	Total           float64            `json:"total"`
	Hottest         float64            `json:"hottest"`
	ExposureSeconds float64            `json:"exposure_seconds"`
	TotalRate       float64            `json:"total_rate"`
	HottestRate     float64            `json:"hottest_rate"`
	Extra           map[string]float64 `json:"extra,omitempty"`
	Alarmed         bool               `json:"alarmed"`
}

func NewResultMessage(res PollResult) ResultMessage {
	return ResultMessage{
		Type:            "result",
		FrameIndex:      res.Frame.Index,
		Total:           res.Stats.Total,
		Hottest:         res.Stats.Hottest,
		ExposureSeconds: res.Stats.ExposureSeconds,
		TotalRate:       res.Stats.TotalRate,
		HottestRate:     res.Stats.HottestRate,
		Extra:           res.Stats.Extra,
		Alarmed:         res.Alarmed,
	}
}
