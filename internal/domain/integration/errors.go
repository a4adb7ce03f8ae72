package integration

import "errors"

var (
	// Fatal fetch errors: any of these aborts the run
	ErrCredentialsMissing = errors.New("integration: remote catalog credentials are not configured")
	ErrRemoteAuthFailed   = errors.New("integration: remote catalog rejected both credential schemes")
	ErrAntiBotChallenge   = errors.New("integration: remote catalog answered with an anti-bot challenge (CAPTCHA) instead of JSON")
	ErrFirstPageFailed    = errors.New("integration: first catalog page could not be fetched")

	// Recoverable fetch errors
	ErrRemoteUnavailable     = errors.New("integration: remote catalog temporarily unavailable")
	ErrRemoteRequestFailed   = errors.New("integration: remote catalog request failed")
	ErrRemoteInvalidResponse = errors.New("integration: invalid remote catalog response")

	// Mapping errors
	ErrMappingInvalidRemoteID   = errors.New("integration: invalid remote ID")
	ErrMappingInvalidLocalID    = errors.New("integration: invalid local ID")
	ErrMappingAlreadyExists     = errors.New("integration: identity mapping already exists")
	ErrMappingInvalidRemoteName = errors.New("integration: remote category name is required")

	// Run ledger errors
	ErrRunNotFound          = errors.New("integration: sync run not found")
	ErrRunAlreadyFinalized  = errors.New("integration: sync run already finalized")
	ErrRunAlreadyInProgress = errors.New("integration: a catalog sync run is already in progress")
	ErrRunCancelled         = errors.New("integration: catalog sync run was cancelled")
	ErrInvalidTriggerType   = errors.New("integration: invalid sync trigger type")
)

// IsFatalFetchError reports whether a fetch error must abort the whole run.
// Auth and anti-bot failures are never retried with another page.
func IsFatalFetchError(err error) bool {
	return errors.Is(err, ErrCredentialsMissing) ||
		errors.Is(err, ErrRemoteAuthFailed) ||
		errors.Is(err, ErrAntiBotChallenge) ||
		errors.Is(err, ErrFirstPageFailed)
}
