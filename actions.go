package agent

// Action is the closed set of operations a task may request.
// Use the exported constants instead of raw strings to avoid typos.
type Action string

const (
	// ActionScrape fetches a URL and returns a bounded prefix of its text.
	ActionScrape Action = "Scrape"
)

// AllActions lists every supported action in a stable order.
var AllActions = []Action{ActionScrape}

// String returns the raw tag of the action.
func (a Action) String() string { return string(a) }

// ParseAction converts a tag into an Action, returning ErrUnsupportedAction for unknown values.
func ParseAction(s string) (Action, error) {
	switch s {
	case string(ActionScrape):
		return ActionScrape, nil
	default:
		return "", ErrUnsupportedAction
	}
}
