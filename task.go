package agent

import "fmt"

// Task represents a unit of pending work pulled by the agent.
// It is serialized to JSON when stored in Redis.
type Task struct {
	// ID is the unique identifier for the task within a store.
	ID string `json:"id"`
	// Description is free text kept for similarity retrieval; it does not influence selection.
	Description string `json:"description"`
	// Goal is the human-readable objective included in the summarization prompt.
	Goal string `json:"goal"`
	// Action names the operation the executor performs (see Action).
	Action Action `json:"action"`
	// Params is the action-specific argument (the URL for Scrape).
	Params string `json:"params"`
}

// Validate checks the fields required to ingest a task.
// Unknown action tags are accepted here; they are rejected at dispatch time.
func (t Task) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidTask)
	case t.Goal == "":
		return fmt.Errorf("%w: task %q: missing goal", ErrInvalidTask, t.ID)
	case t.Action == "":
		return fmt.Errorf("%w: task %q: missing action", ErrInvalidTask, t.ID)
	case t.Action == ActionScrape && t.Params == "":
		return fmt.Errorf("%w: task %q: Scrape requires a url parameter", ErrInvalidTask, t.ID)
	}
	return nil
}
