package config

// Profile selects the output size and sampling budget of the deployment.
type Profile string

const (
	// ProfileFast renders 384px stickers in 12 steps.
	ProfileFast Profile = "fast"

	// ProfileQuality renders 512px stickers with the full default schedule.
	ProfileQuality Profile = "quality"
)

// SynthesisParams are the deployment-time synthesis constants.
type SynthesisParams struct {
	Size  int
	Steps int
}

// Params returns the synthesis constants of the profile. Unknown profiles
// behave like ProfileFast.
func (p Profile) Params() SynthesisParams {
	switch p {
	case ProfileQuality:
		return SynthesisParams{Size: 512, Steps: 50}
	default:
		return SynthesisParams{Size: 384, Steps: 12}
	}
}
