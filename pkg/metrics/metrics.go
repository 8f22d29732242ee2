package metrics

/*
Labels and so on for metrics used in ecsdeploy.
*/

const (
	LabelMethod  = "method"
	LabelSuccess = "success"

	// Labels for release metrics
	LabelReleaseKind = "release_kind"
	LabelOutcome     = "outcome"
	LabelStage       = "stage"

	// Labels for rollout metrics
	LabelForced = "forced"
)
