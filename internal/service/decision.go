package service

import "github.com/DJ-RINO/freee-auto-bookkeeping/internal/config"

// Action is the terminal decision class for a scored receipt.
type Action string

const (
	ActionAuto   Action = "AUTO"
	ActionAssist Action = "ASSIST"
	ActionManual Action = "MANUAL"
)

// qualityTierBar separates the high- and low-quality threshold tables.
const qualityTierBar = 0.7

// DecideAction maps a match score to AUTO, ASSIST or MANUAL. When adaptive
// thresholds are enabled and a quality score is supplied, low-quality
// receipts get the more permissive band: amount and date evidence has to
// carry more weight when the text fields are untrustworthy.
func DecideAction(score int, cfg config.Config, qualityScore *float64) Action {
	band := cfg.Thresholds
	if qualityScore != nil && cfg.Adaptive.Enabled {
		if *qualityScore >= qualityTierBar {
			band = cfg.Adaptive.HighQuality
		} else {
			band = cfg.Adaptive.LowQuality
		}
	}
	switch {
	case score >= band.Auto:
		return ActionAuto
	case score >= band.AssistMin && score <= band.AssistMax:
		return ActionAssist
	default:
		return ActionManual
	}
}
