// Package command implements the command protocol of background passes.
//
// An [Orchestrator] maps start, ask and stop onto a [TaskRunner] and answers with a
// [models.CommandResponse] carrying a rendered alert, status bar and title list.
//
//	start : submit the pass          -> done "Action started." or fail "Something went wrong."
//	ask   : poll the task            -> processed while running, done "Completed." on success,
//	                                    fail "Action failed." on failure, fail "Action stopped." once stopped
//	stop  : set the stop flag, revoke -> done "Action stopped." or fail "The action is not in progress."
//
// Any other command answers fail "Unknown command.".
//
// [LocalRunner] executes tasks on goroutines and mirrors their states into the shared [state.Store],
// recording each one in the run history when a [RunRecorder] is configured.
package command
