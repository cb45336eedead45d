package command

import (
	"github.com/desertthunder/wlsync/internal/models"
	"github.com/desertthunder/wlsync/internal/web"
)

// FailCommon is the generic fail response, for requests that never reach an [Orchestrator].
func FailCommon(renderer *web.Renderer) models.CommandResponse {
	msg, err := renderer.Alert(models.ResponseFail, msgFailCommon)
	if err != nil {
		msg = msgFailCommon
	}
	return models.CommandResponse{Status: models.ResponseFail, Message: msg}
}

func (o *Orchestrator) failCommon() models.CommandResponse {
	return models.CommandResponse{Status: models.ResponseFail, Message: o.alert(models.ResponseFail, msgFailCommon)}
}

func (o *Orchestrator) failTask() models.CommandResponse {
	return models.CommandResponse{Status: models.ResponseFail, Message: o.alert(models.ResponseFail, msgFailTask)}
}

func (o *Orchestrator) unknown() models.CommandResponse {
	return models.CommandResponse{Status: models.ResponseFail, Message: o.alert(models.ResponseFail, msgUnknown)}
}

func (o *Orchestrator) warnNotRunning(c call) models.CommandResponse {
	return models.CommandResponse{
		Status:            models.ResponseFail,
		Message:           o.alert(models.ResponseWarning, msgNotRunning),
		StatusbarFragment: o.statusBar(c),
	}
}

func (o *Orchestrator) infoStopped(c call) models.CommandResponse {
	return models.CommandResponse{
		Status:            models.ResponseFail,
		Message:           o.alert(models.ResponseInfo, msgStopped),
		StatusbarFragment: o.statusBar(c),
	}
}

func (o *Orchestrator) processed(c call) models.CommandResponse {
	return models.CommandResponse{
		Status:            models.ResponseProcessed,
		StatusbarFragment: o.statusBar(c),
		TitleFragment:     o.titles(c),
	}
}

func (o *Orchestrator) doneStarted(c call) models.CommandResponse {
	return models.CommandResponse{
		Status:            models.ResponseDone,
		Message:           o.alert(models.ResponseInfo, msgStarted),
		StatusbarFragment: o.statusBar(c),
	}
}

func (o *Orchestrator) doneStopped(c call) models.CommandResponse {
	return models.CommandResponse{
		Status:            models.ResponseDone,
		Message:           o.alert(models.ResponseDone, msgStopped),
		StatusbarFragment: o.statusBar(c),
	}
}

func (o *Orchestrator) doneFinished(c call) models.CommandResponse {
	return models.CommandResponse{
		Status:            models.ResponseDone,
		Message:           o.alert(models.ResponseDone, msgFinished),
		StatusbarFragment: o.statusBar(c),
		TitleFragment:     o.titles(c),
	}
}

func (o *Orchestrator) alert(status models.ResponseStatus, msg string) string {
	html, err := o.renderer.Alert(status, msg)
	if err != nil {
		o.logger.Error("failed to render alert", "error", err)
		return msg
	}
	return html
}

func (o *Orchestrator) statusBar(c call) string {
	p, err := o.Progress(c.ctx, c.session, c.action)
	if err != nil {
		o.logger.Warn("failed to read progress", "action", c.action, "error", err)
	}
	html, err := o.renderer.StatusBar(c.action, c.args.ProgressExpanded, p)
	if err != nil {
		o.logger.Error("failed to render status bar", "error", err)
	}
	return html
}

func (o *Orchestrator) titles(c call) string {
	dump, err := o.Titles(c.ctx, c.session, c.role)
	if err != nil {
		o.logger.Warn("failed to read titles", "role", c.role, "error", err)
	}
	html, err := o.renderer.Titles(c.role, c.args.SelectedTab, dump)
	if err != nil {
		o.logger.Error("failed to render titles", "error", err)
	}
	return html
}
