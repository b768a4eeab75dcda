package session

import (
	"errors"
	"fmt"

	"pagebrain/internal/commands"
	"pagebrain/internal/llm"
	"pagebrain/internal/research"
	"pagebrain/internal/settings"
)

// ErrBusy is returned when an action arrives while another is in progress.
var ErrBusy = errors.New("another request is in progress")

// ErrPageLoad wraps failures to load the page being discussed.
var ErrPageLoad = errors.New("could not load the page")

// GenericFailure is shown for failures without a more specific description.
const GenericFailure = "An error occurred while processing your request."

// reportedError marks an error the user has already been told about.
type reportedError struct {
	error
}

func (r reportedError) Unwrap() error {
	return r.error
}

// IsReported reports whether err was already shown to the user through a
// Surface notice or message.
func IsReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

// DescribeError turns an error into the one line shown to the user.
func DescribeError(err error) string {
	var (
		authErr      *llm.AuthError
		apiErr       *llm.APIError
		transportErr *llm.TransportError
		parseErr     *research.ParseError
		validErr     *commands.ValidationError
		persistErr   *settings.PersistError
	)
	switch {
	case errors.Is(err, ErrBusy):
		return "Please wait for the current request to finish."
	case errors.Is(err, ErrPageLoad):
		return err.Error()
	case errors.Is(err, llm.ErrModelRequired):
		return "There is no LLM selected. Type /models to choose one."
	case errors.Is(err, llm.ErrEndpointRequired):
		return "No endpoint URL is configured. Check the configuration with /config."
	case errors.Is(err, research.ErrNoGoal):
		return "There is no research goal. Start research mode with /research <goal>."
	case errors.As(err, &authErr):
		return fmt.Sprintf("Authentication failed: %s. Check the API token.", authErr.Message)
	case errors.As(err, &apiErr):
		return "The model endpoint rejected the request: " + apiErr.Message
	case errors.As(err, &transportErr):
		return GenericFailure + " (" + transportErr.Error() + ")"
	case errors.As(err, &parseErr):
		return "The model did not return a usable verdict: " + parseErr.Reason
	case errors.As(err, &validErr):
		return validErr.Error()
	case errors.As(err, &persistErr):
		return fmt.Sprintf("Could not save %s (%v). The change only applies to this session.", persistErr.Name, persistErr.Err)
	default:
		return GenericFailure
	}
}
