package models

// OptionalArgs carries UI state used when rendering response fragments.
type OptionalArgs struct {
	SelectedTab      string `json:"selected_tab"`
	ProgressExpanded bool   `json:"progress_expanded"`
}

// CommandRequest is one call of the command protocol.
type CommandRequest struct {
	Action       Action       `json:"action"`
	Command      Command      `json:"command"`
	OptionalArgs OptionalArgs `json:"optional_args"`
}

// CommandResponse is the answer to a [CommandRequest].
type CommandResponse struct {
	Status            ResponseStatus `json:"status"`
	Message           string         `json:"message"`
	TitleFragment     string         `json:"title_fragment"`
	StatusbarFragment string         `json:"statusbar_fragment"`
}

// SetupRequest selects the module and cookies used for an action.
type SetupRequest struct {
	Action  Action `json:"action"`
	Module  string `json:"module"`
	Cookies string `json:"cookies"`
}
