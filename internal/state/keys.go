package state

import "github.com/desertthunder/wlsync/internal/models"

// Fields of a session's per-module state.
const (
	FieldProgress = "progress"
	FieldStopped  = "stopped"
	FieldTask     = "task"
	FieldSetup    = "setup"
	FieldDump     = "dump"
)

// Key returns the state key of field for one session and action module: <session>/<module>/<field>.
func Key(session string, module models.ActionModule, field string) string {
	return session + "/" + string(module) + "/" + field
}
