package worker

import (
	"context"

	"github.com/mbarbier/studium/internal/model"
	"github.com/mbarbier/studium/internal/normalize"
)

// NormalizeJob validates and cleans one raw factoid
type NormalizeJob struct {
	Seq        int
	Raw        model.RawFactoid
	Normalizer *normalize.Normalizer
}

// NormalizeResult carries the outcome of one normalization job. Seq
// preserves input order so the pipeline can reassemble a deterministic
// mention list regardless of worker scheduling.
type NormalizeResult struct {
	Seq       int
	Mention   *model.Mention
	Warnings  []normalize.Warning
	Rejection *normalize.Rejection
	Err       error
}

// GetError implements Result
func (r *NormalizeResult) GetError() error {
	return r.Err
}

// Execute implements Job
func (j *NormalizeJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &NormalizeResult{Seq: j.Seq, Err: err}
	}

	mention, warnings, rejection := j.Normalizer.Normalize(j.Raw)
	return &NormalizeResult{
		Seq:       j.Seq,
		Mention:   mention,
		Warnings:  warnings,
		Rejection: rejection,
	}
}
