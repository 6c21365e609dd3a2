package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/foundry/internal/chatdev"
	"github.com/five82/foundry/internal/poller"
)

// Action results

type cancelResultMsg struct {
	taskID int64
	task   *chatdev.Task
	err    error
}

type deleteConfirmedMsg struct {
	taskID int64
}

type deleteResultMsg struct {
	taskID int64
	resp   chatdev.DeleteResponse
	err    error
}

type buildResultMsg struct {
	taskID int64
	resp   chatdev.BuildResponse
	err    error
}

type statusResultMsg struct {
	taskID int64
	task   *chatdev.Task
	err    error
}

type generateResultMsg struct {
	resp chatdev.GenerateResponse
	err  error
}

// Commands

func cancelTaskCmd(ctx context.Context, client chatdev.API, taskID int64) tea.Cmd {
	return func() tea.Msg {
		task, err := client.CancelTask(ctx, taskID)
		return cancelResultMsg{taskID: taskID, task: task, err: err}
	}
}

func deleteTaskCmd(ctx context.Context, client chatdev.API, taskID int64) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.DeleteTask(ctx, taskID)
		return deleteResultMsg{taskID: taskID, resp: resp, err: err}
	}
}

func buildAPKCmd(ctx context.Context, client chatdev.API, taskID int64, req chatdev.BuildRequest) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.BuildAPK(ctx, req)
		return buildResultMsg{taskID: taskID, resp: resp, err: err}
	}
}

func taskStatusCmd(ctx context.Context, client chatdev.API, taskID int64) tea.Cmd {
	return func() tea.Msg {
		task, err := client.GetTaskStatus(ctx, taskID)
		return statusResultMsg{taskID: taskID, task: task, err: err}
	}
}

func generateCmd(ctx context.Context, client chatdev.API, req chatdev.GenerateRequest) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.GenerateProject(ctx, req)
		return generateResultMsg{resp: resp, err: err}
	}
}

// Task actions

func (m Model) cancelSelected() (tea.Model, tea.Cmd) {
	task, ok := m.selectedTask()
	if !ok || m.client == nil {
		return m, nil
	}
	task, _ = m.detailFor(task)
	if !task.Status.Cancellable() {
		m.notify(noticeWarning, "Task #%d is %s and cannot be cancelled", task.TaskID, strings.ToLower(string(task.Status)))
		return m, nil
	}
	m.busy++
	return m, cancelTaskCmd(m.ctx, m.client, task.TaskID)
}

func (m Model) confirmDeleteSelected() (tea.Model, tea.Cmd) {
	task, ok := m.selectedTask()
	if !ok || m.client == nil {
		return m, nil
	}
	m.modal = confirmModal{
		title: fmt.Sprintf("Delete task #%d?", task.TaskID),
		body:  "The task record is removed from the server. Generated files stay where they are.",
		onConfirm: func() tea.Msg {
			return deleteConfirmedMsg{taskID: task.TaskID}
		},
	}
	return m, nil
}

func (m Model) buildSelected() (tea.Model, tea.Cmd) {
	task, ok := m.selectedTask()
	if !ok || m.client == nil {
		return m, nil
	}
	task, _ = m.detailFor(task)
	if !task.CanBuildAPK() {
		reason := "only completed projects can be packaged"
		switch {
		case task.APKBuildStatus.InProgress():
			reason = "a build is already running"
		case task.APKBuildStatus == chatdev.APKBuilt:
			reason = "the APK is already built"
		case task.Status == chatdev.StatusCompleted:
			reason = "the project path is not recognised"
		}
		m.notify(noticeWarning, "Cannot build task #%d: %s", task.TaskID, reason)
		return m, nil
	}
	ref, _ := task.Project()
	m.busy++
	m.notify(noticeInfo, "Building APK for %s...", ref.Name)
	return m, buildAPKCmd(m.ctx, m.client, task.TaskID, ref.BuildRequest())
}

func (m Model) toggleWatchSelected() (tea.Model, tea.Cmd) {
	task, ok := m.selectedTask()
	if !ok || m.watcher == nil {
		return m, nil
	}
	if m.watching(task.TaskID) {
		m.watcher.Cancel(task.TaskID)
		if m.store != nil {
			m.store.Unwatch(task.TaskID)
		}
		m.notify(noticeInfo, "Stopped watching task #%d", task.TaskID)
		return m, fetchSnapshotCmd(m.store)
	}
	m.watch(task.TaskID)
	m.notify(noticeInfo, "Watching task #%d", task.TaskID)
	return m, nil
}

// watch starts a poll whose observations land in the store and, as
// messages, on the events channel. The handler never blocks the poll.
func (m Model) watch(taskID int64) {
	if m.watcher == nil {
		return
	}
	events, store, ctx := m.events, m.store, m.ctx
	m.watcher.Start(taskID, func(obs poller.Observation) {
		if store != nil {
			store.Observe(obs)
		}
		msg := observationMsg(obs)
		select {
		case events <- msg:
		default:
			go func() {
				select {
				case events <- msg:
				case <-ctx.Done():
				}
			}()
		}
	})
}

// Result handlers

func (m Model) handleObservation(msg observationMsg) (tea.Model, tea.Cmd) {
	obs := poller.Observation(msg)
	cmds := []tea.Cmd{waitForEvent(m.events)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if !obs.Final {
		return m, tea.Batch(cmds...)
	}

	switch {
	case obs.Err != nil:
		m.notify(noticeError, "Stopped watching task #%d: %s", obs.TaskID, describeError(obs.Err))
	case obs.Task == nil:
	case obs.Task.APKReady():
		m.notify(noticeSuccess, "Task #%d APK ready: %s", obs.TaskID, obs.Task.APKPath)
	case obs.Task.APKBuildStatus == chatdev.APKBuildFailed:
		m.notify(noticeError, "Task #%d APK build failed", obs.TaskID)
	case obs.Task.Status == chatdev.StatusCompleted:
		m.notify(noticeSuccess, "Task #%d completed", obs.TaskID)
	case obs.Task.Status == chatdev.StatusFailed:
		text := fmt.Sprintf("Task #%d failed", obs.TaskID)
		if line := firstLine(obs.Task.ErrorMessage); line != "" {
			text += ": " + line
		}
		m.notify(noticeError, "%s", text)
	case obs.Task.Status == chatdev.StatusCancelled:
		m.notify(noticeWarning, "Task #%d cancelled", obs.TaskID)
	}
	m.requestRefresh()
	return m, tea.Batch(cmds...)
}

func (m Model) handleCancelResult(msg cancelResultMsg) (tea.Model, tea.Cmd) {
	m.busy = max(m.busy-1, 0)
	if msg.err != nil {
		m.notifyErr(fmt.Sprintf("Cancel task #%d", msg.taskID), msg.err)
		return m, nil
	}
	if msg.task != nil {
		m.details[msg.taskID] = taskDetail{task: *msg.task, at: time.Now()}
	}
	m.notify(noticeWarning, "Task #%d cancelled", msg.taskID)
	m.requestRefresh()
	return m, nil
}

func (m Model) handleDeleteConfirmed(msg deleteConfirmedMsg) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, nil
	}
	m.busy++
	return m, deleteTaskCmd(m.ctx, m.client, msg.taskID)
}

func (m Model) handleDeleteResult(msg deleteResultMsg) (tea.Model, tea.Cmd) {
	m.busy = max(m.busy-1, 0)
	if msg.err != nil {
		m.notifyErr(fmt.Sprintf("Delete task #%d", msg.taskID), msg.err)
		return m, nil
	}
	if !msg.resp.Deleted() {
		m.notify(noticeWarning, "Delete task #%d: %s", msg.taskID, msg.resp.Message)
		return m, nil
	}
	if m.watcher != nil {
		m.watcher.Cancel(msg.taskID)
	}
	delete(m.details, msg.taskID)
	m.notify(noticeSuccess, "Task #%d deleted", msg.taskID)
	var cmd tea.Cmd
	if m.store != nil {
		m.store.Forget(msg.taskID)
		cmd = fetchSnapshotCmd(m.store)
	}
	m.requestRefresh()
	return m, cmd
}

func (m Model) handleBuildResult(msg buildResultMsg) (tea.Model, tea.Cmd) {
	m.busy = max(m.busy-1, 0)
	if msg.err != nil {
		m.notifyErr(fmt.Sprintf("Build APK for task #%d", msg.taskID), msg.err)
		return m, nil
	}
	if !msg.resp.Success {
		text := msg.resp.Message
		if text == "" {
			text = "build failed"
		}
		m.notify(noticeError, "Build APK for task #%d: %s", msg.taskID, text)
		return m, nil
	}
	if msg.resp.APKPath != "" {
		m.notify(noticeSuccess, "APK built: %s", msg.resp.APKPath)
	} else {
		m.notify(noticeInfo, "APK build started for task #%d", msg.taskID)
	}
	m.watch(msg.taskID)
	return m, nil
}

func (m Model) handleStatusResult(msg statusResultMsg) (tea.Model, tea.Cmd) {
	m.busy = max(m.busy-1, 0)
	if msg.err != nil {
		m.notifyErr(fmt.Sprintf("Task #%d", msg.taskID), msg.err)
		return m, nil
	}
	if msg.task != nil {
		m.details[msg.taskID] = taskDetail{task: *msg.task, at: time.Now()}
	}
	return m, nil
}

func (m Model) handleGenerateResult(msg generateResultMsg) (tea.Model, tea.Cmd) {
	m.busy = max(m.busy-1, 0)
	if msg.err != nil {
		m.notifyErr("Generate project", msg.err)
		cmd := m.generate.focusField(0)
		return m, cmd
	}
	m.logger.Info("generation task created", "task_id", msg.resp.TaskID)
	m.notify(noticeSuccess, "Task #%d created (%s)", msg.resp.TaskID, strings.ToLower(string(msg.resp.Status)))
	m.watch(msg.resp.TaskID)
	m.generate = newGenerateForm()
	m.generate.setWidth(m.formWidth())
	m.currentView = ViewTasks
	m.requestRefresh()
	return m, nil
}

// describeError turns a client error into a short message for the status line.
func describeError(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *chatdev.Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	switch apiErr.Kind {
	case chatdev.KindAuthentication:
		return "invalid API key, check Settings"
	case chatdev.KindNotFound:
		if apiErr.TaskID > 0 {
			return fmt.Sprintf("task #%d not found", apiErr.TaskID)
		}
		return firstNonEmpty(apiErr.Msg, "not found")
	case chatdev.KindTransport:
		return "API unreachable at the configured URL"
	case chatdev.KindValidation:
		return "rejected: " + firstNonEmpty(apiErr.Detail, apiErr.Msg, "validation error")
	case chatdev.KindConflict:
		return firstNonEmpty(apiErr.Detail, apiErr.Msg, "conflict")
	case chatdev.KindInvalidArgument:
		return firstNonEmpty(apiErr.Msg, "invalid input")
	default:
		if apiErr.Status > 0 {
			return fmt.Sprintf("server returned %d", apiErr.Status)
		}
		return apiErr.Error()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
