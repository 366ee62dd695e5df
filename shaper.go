package executor

// shapeError converts an error from request validation, concurrency
// admission, or orchestration into the ExecutionResult shape. It is the
// other half of the Unified Result Shaper: the success path is built
// directly in DefaultRuntime.Execute from the Orchestrator's ExecutionData,
// this half normalizes the failure path.
//
// Per the propagation policy (spec §7), only KindBadRequest,
// KindBackendUnavailable, KindQueueFull, and KindInternal surface as
// failures. A wall-clock Timeout is carried inside ExecutionData (its
// ExitCode set to ExitCodeTimeout) with Success left true, and a failed
// policy fetch falls back to the default policy. Any other kind that
// still reaches here, such as a runner's StartFailed or ImagePullFailed,
// is reported through the defensive branch below as Internal.
func shapeError(err error) (ExecutionResult, error) {
	var execErr *ExecutionError
	if as, ok := err.(*ExecutionError); ok {
		execErr = as
	} else {
		execErr = &ExecutionError{Kind: KindInternal, Op: "unknown", Err: err}
	}

	if !execErr.Kind.surfacesAsFailure() {
		// Defensive: a kind that shouldn't reach here is still reported,
		// rather than silently dropped, but is relabeled Internal so
		// callers can tell the shaper's own invariant was violated.
		execErr = &ExecutionError{Kind: KindInternal, Op: execErr.Op, Err: execErr}
	}

	return ExecutionResult{
		Success: false,
		Error: &ResultError{
			Message: execErr.Error(),
			Kind:    execErr.Kind,
		},
	}, nil
}
