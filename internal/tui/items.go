package tui

import (
	"fmt"

	"github.com/Joseda-hg/todoserver/internal/model"
)

func formatCategory(category string) string {
	if category == "" {
		return "no category"
	}
	return category
}

func formatTaskSummary(task model.Task) string {
	return fmt.Sprintf("%s | %s | %s | due %s", task.Title, task.Status, formatCategory(task.Category), task.DueDate)
}
