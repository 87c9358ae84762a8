package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/Joseda-hg/todoserver/internal/db"
	"github.com/Joseda-hg/todoserver/internal/model"
	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
)

const (
	viewHeader    = "header"
	viewFooter    = "footer"
	viewPending   = "pending"
	viewCompleted = "completed"
	viewHelp      = "help"
)

// UI is an operator console over one user's task list.
type UI struct {
	store  db.Store
	gui    *gocui.Gui
	userID string

	user      model.User
	counts    model.TaskCounts
	pending   []model.Task
	completed []model.Task

	selectedPending   int
	selectedCompleted int
	focus             string

	confirmDeleteAll bool
	helpActive       bool
	status           string
}

func Run(store db.Store, userID string) error {
	ui := &UI{store: store, userID: userID, focus: viewPending}
	if err := ui.loadTasks(); err != nil {
		return err
	}

	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()
	ui.gui = gui

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}

	if err := gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	global := []struct {
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyCtrlC, u.quit},
		{'q', u.quit},
		{'r', u.reload},
		{'x', u.completeTask},
		{'d', u.deleteTask},
		{'D', u.deleteAll},
		{'?', u.toggleHelp},
		{gocui.KeyTab, u.switchFocus},
		{'1', u.focusPending},
		{'2', u.focusCompleted},
	}
	for _, binding := range global {
		if err := gui.SetKeybinding("", binding.key, gocui.ModNone, binding.handler); err != nil {
			return err
		}
	}

	for _, name := range []string{viewPending, viewCompleted} {
		for _, key := range []any{gocui.KeyArrowDown, 'j'} {
			if err := gui.SetKeybinding(name, key, gocui.ModNone, u.moveDown); err != nil {
				return err
			}
		}
		for _, key := range []any{gocui.KeyArrowUp, 'k'} {
			if err := gui.SetKeybinding(name, key, gocui.ModNone, u.moveUp); err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	u.renderHeader(headerView)

	footerY1 := max(maxY-1, 3)
	footerY0 := max(footerY1-2, 2)
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	u.renderFooter(footerView)

	bodyTop := 2
	bodyBottom := footerY0 - 1
	if bodyBottom <= bodyTop {
		return nil
	}
	split := bodyTop + (bodyBottom-bodyTop)/2

	pendingView, err := gui.SetView(viewPending, 0, bodyTop, maxX-1, split, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		pendingView.Title = "1 Pending"
	}
	applyViewStyle(pendingView, u.focus == viewPending)
	u.renderTaskList(pendingView, u.pending, u.selectedPending, u.focus == viewPending)

	completedView, err := gui.SetView(viewCompleted, 0, split+1, maxX-1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		completedView.Title = "2 Completed"
	}
	applyViewStyle(completedView, u.focus == viewCompleted)
	u.renderTaskList(completedView, u.completed, u.selectedCompleted, u.focus == viewCompleted)

	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else {
		if err := gui.DeleteView(viewHelp); err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		if _, err := gui.SetCurrentView(u.focus); err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
			return err
		}
	}

	return nil
}

func (u *UI) loadTasks() error {
	ctx := context.Background()

	user, err := u.store.GetUser(ctx, u.userID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", u.userID, err)
	}

	tasks, err := u.store.ListUserTasks(ctx, u.userID)
	if err != nil {
		return err
	}

	counts, err := u.store.CountTasks(ctx, u.userID)
	if err != nil {
		return err
	}

	pending := make([]model.Task, 0, len(tasks))
	completed := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Status == model.StatusCompleted {
			completed = append(completed, task)
		} else {
			pending = append(pending, task)
		}
	}

	u.user = user
	u.counts = counts
	u.pending = pending
	u.completed = completed

	if u.selectedPending >= len(u.pending) {
		u.selectedPending = max(len(u.pending)-1, 0)
	}
	if u.selectedCompleted >= len(u.completed) {
		u.selectedCompleted = max(len(u.completed)-1, 0)
	}
	return nil
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	fmt.Fprintf(view, "%s <%s> | pending: %d | completed: %d", u.user.Name, u.user.Email, u.counts.Pending, u.counts.Completed)
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)
	view.SetCursor(0, 0)

	fmt.Fprintln(view, "x complete | d delete | D delete all | r reload | tab/1-2 panes | ? help | q quit")
	if u.status != "" {
		fmt.Fprint(view, u.status)
	}
}

func (u *UI) renderTaskList(view *gocui.View, tasks []model.Task, selected int, focused bool) {
	view.Clear()
	for i, task := range tasks {
		prefix := " "
		if i == selected {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatTaskSummary(task))
	}
	if focused && len(tasks) > 0 {
		view.SetCursor(0, min(selected, len(tasks)-1))
	}
}

func (u *UI) selectedTask() *model.Task {
	switch u.focus {
	case viewCompleted:
		if u.selectedCompleted >= 0 && u.selectedCompleted < len(u.completed) {
			return &u.completed[u.selectedCompleted]
		}
	default:
		if u.selectedPending >= 0 && u.selectedPending < len(u.pending) {
			return &u.pending[u.selectedPending]
		}
	}
	return nil
}

func (u *UI) switchFocus(gui *gocui.Gui, _ *gocui.View) error {
	if u.focus == viewPending {
		return u.setFocus(gui, viewCompleted)
	}
	return u.setFocus(gui, viewPending)
}

func (u *UI) focusPending(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewPending)
}

func (u *UI) focusCompleted(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewCompleted)
}

func (u *UI) setFocus(gui *gocui.Gui, name string) error {
	u.focus = name
	if gui != nil {
		_, _ = gui.SetCurrentView(name)
	}
	return nil
}

func (u *UI) moveDown(_ *gocui.Gui, _ *gocui.View) error {
	switch u.focus {
	case viewCompleted:
		if u.selectedCompleted < len(u.completed)-1 {
			u.selectedCompleted++
		}
	default:
		if u.selectedPending < len(u.pending)-1 {
			u.selectedPending++
		}
	}
	return nil
}

func (u *UI) moveUp(_ *gocui.Gui, _ *gocui.View) error {
	switch u.focus {
	case viewCompleted:
		if u.selectedCompleted > 0 {
			u.selectedCompleted--
		}
	default:
		if u.selectedPending > 0 {
			u.selectedPending--
		}
	}
	return nil
}

func (u *UI) reload(_ *gocui.Gui, _ *gocui.View) error {
	u.status = ""
	u.confirmDeleteAll = false
	return u.loadTasks()
}

func (u *UI) completeTask(_ *gocui.Gui, _ *gocui.View) error {
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	if _, err := u.store.CompleteTask(context.Background(), selected.ID); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = fmt.Sprintf("completed %q", selected.Title)
	return u.loadTasks()
}

func (u *UI) deleteTask(_ *gocui.Gui, _ *gocui.View) error {
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	title := selected.Title
	if err := u.store.DeleteTask(context.Background(), selected.ID); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = fmt.Sprintf("deleted %q", title)
	return u.loadTasks()
}

// deleteAll needs two presses; the first only arms it.
func (u *UI) deleteAll(_ *gocui.Gui, _ *gocui.View) error {
	if !u.confirmDeleteAll {
		u.confirmDeleteAll = true
		u.status = "press D again to delete every task"
		return nil
	}
	u.confirmDeleteAll = false

	deleted, err := u.store.DeleteAllTasks(context.Background(), u.userID)
	if err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = fmt.Sprintf("deleted %d tasks", deleted)
	return u.loadTasks()
}

func (u *UI) toggleHelp(_ *gocui.Gui, _ *gocui.View) error {
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(50, maxX/2)
	height := 8
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"  tab / 1 / 2   switch pane",
		"  j/k, arrows   move selection",
		"  x             mark selected task completed",
		"  d             delete selected task",
		"  D D           delete all tasks of this user",
		"  r reload | ? close help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool) {
	view.Frame = true
	view.Highlight = focused
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
		view.TitleColor = gocui.ColorDefault
	}
}
