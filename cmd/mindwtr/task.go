package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/mindwtr/mindwtr/internal/model"
	"github.com/mindwtr/mindwtr/internal/recur"
	"github.com/mindwtr/mindwtr/internal/store"
	"github.com/mindwtr/mindwtr/internal/ui"
)

var (
	addProject string
	addDue     string
	addStart   string
	addStatus  string
	addTags    []string
	addRepeat  string
	addFocus   bool

	listStatus  string
	listProject string
	listAll     bool
)

var addCmd = &cobra.Command{
	Use:     "add <title>",
	GroupID: "tasks",
	Short:   "Add a task",
	Long: `Add a task to the inbox (or another status with --status).

Dates accept natural language: --due "tomorrow 5pm", --due "next friday".
Exact forms work too: 2026-03-01 or 2026-03-01T09:00.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.Join(args, " ")

		props := &store.TaskUpdate{}
		if addDue != "" {
			stamp, err := parseWhen(addDue)
			if err != nil {
				return fmt.Errorf("parse --due: %w", err)
			}
			props.DueDate = &stamp
		}
		if addStart != "" {
			stamp, err := parseWhen(addStart)
			if err != nil {
				return fmt.Errorf("parse --start: %w", err)
			}
			props.StartTime = &stamp
		}
		if addStatus != "" {
			status := model.TaskStatus(addStatus)
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", addStatus)
			}
			props.Status = &status
		}
		if len(addTags) > 0 {
			props.Tags = &addTags
		}
		if addRepeat != "" {
			rule, err := recur.ParseRule(addRepeat)
			if err != nil {
				return fmt.Errorf("parse --repeat: %w", err)
			}
			props.Recurrence = rule
		}
		if addFocus {
			t := true
			props.IsFocusedToday = &t
		}

		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if addProject != "" {
			project, err := s.AddProject(addProject, nil)
			if err != nil {
				return err
			}
			props.ProjectID = &project.ID
		}

		task, err := s.AddTask(title, props)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s %s\n", ui.ShortID(task.ID), task.Title)
		return flushStore(cmd, s)
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "tasks",
	Short:   "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		var tasks []model.Task
		if listAll {
			tasks = s.Document().Tasks
		} else {
			tasks = s.VisibleTasks()
		}

		projects := map[string]string{}
		for _, p := range s.Document().Projects {
			projects[p.ID] = p.Title
		}

		var projectID string
		if listProject != "" {
			projectID = resolveProject(s, listProject)
			if projectID == "" {
				return fmt.Errorf("no project matching %q", listProject)
			}
		}

		filtered := tasks[:0]
		for _, t := range tasks {
			if listStatus != "" && string(t.Status) != listStatus {
				continue
			}
			if projectID != "" && t.ProjectID != projectID {
				continue
			}
			filtered = append(filtered, t)
		}

		sort.SliceStable(filtered, func(i, j int) bool {
			a, b := filtered[i], filtered[j]
			if a.IsFocusedToday != b.IsFocusedToday {
				return a.IsFocusedToday
			}
			return a.CreatedAt < b.CreatedAt
		})

		if len(filtered) == 0 {
			fmt.Println(ui.Muted("No tasks."))
			return nil
		}
		for i := range filtered {
			fmt.Println(ui.TaskLine(&filtered[i], projects[filtered[i].ProjectID]))
		}
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:     "done <id>...",
	GroupID: "tasks",
	Short:   "Complete tasks",
	Long: `Mark tasks done. A recurring task spawns its next occurrence
automatically.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		status := model.StatusDone
		for _, arg := range args {
			id := resolveTask(s, arg)
			if id == "" {
				fmt.Fprintf(os.Stderr, "Warning: no task matching %q\n", arg)
				continue
			}
			if task := s.UpdateTask(id, &store.TaskUpdate{Status: &status}); task != nil {
				fmt.Printf("Done %s %s\n", ui.ShortID(task.ID), task.Title)
			}
		}
		return flushStore(cmd, s)
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <id>...",
	GroupID: "tasks",
	Short:   "Delete tasks (recoverable with restore)",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		var ids []string
		for _, arg := range args {
			if id := resolveTask(s, arg); id != "" {
				ids = append(ids, id)
			} else {
				fmt.Fprintf(os.Stderr, "Warning: no task matching %q\n", arg)
			}
		}
		s.BatchDeleteTasks(ids)
		fmt.Printf("Deleted %d task(s)\n", len(ids))
		return flushStore(cmd, s)
	},
}

var restoreCmd = &cobra.Command{
	Use:     "restore <id>",
	GroupID: "tasks",
	Short:   "Restore a deleted or archived task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		id := resolveTask(s, args[0])
		if id == "" {
			return fmt.Errorf("no task matching %q", args[0])
		}
		task := s.RestoreTask(id)
		if task == nil {
			return fmt.Errorf("no task matching %q", args[0])
		}
		fmt.Printf("Restored %s %s (%s)\n", ui.ShortID(task.ID), task.Title, task.Status)
		return flushStore(cmd, s)
	},
}

var focusCmd = &cobra.Command{
	Use:     "focus <id>",
	GroupID: "tasks",
	Short:   "Toggle a task's today focus",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		id := resolveTask(s, args[0])
		if id == "" {
			return fmt.Errorf("no task matching %q", args[0])
		}
		for _, t := range s.VisibleTasks() {
			if t.ID != id {
				continue
			}
			focused := !t.IsFocusedToday
			s.UpdateTask(id, &store.TaskUpdate{IsFocusedToday: &focused})
			if focused {
				fmt.Printf("Focused %s %s\n", ui.ShortID(id), t.Title)
			} else {
				fmt.Printf("Unfocused %s %s\n", ui.ShortID(id), t.Title)
			}
			break
		}
		return flushStore(cmd, s)
	},
}

func init() {
	addCmd.Flags().StringVarP(&addProject, "project", "p", "", "project title (created if missing)")
	addCmd.Flags().StringVar(&addDue, "due", "", "due date (natural language ok)")
	addCmd.Flags().StringVar(&addStart, "start", "", "start time (natural language ok)")
	addCmd.Flags().StringVar(&addStatus, "status", "", "initial status (default inbox)")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "tags (repeatable)")
	addCmd.Flags().StringVar(&addRepeat, "repeat", "", "recurrence rule, e.g. FREQ=WEEKLY;BYDAY=MO,FR")
	addCmd.Flags().BoolVar(&addFocus, "focus", false, "focus for today")

	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "filter by status")
	listCmd.Flags().StringVarP(&listProject, "project", "p", "", "filter by project")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include archived and deleted tasks")

	rootCmd.AddCommand(addCmd, listCmd, doneCmd, rmCmd, restoreCmd, focusCmd)
}

// parseWhen turns natural-language or ISO date input into a stored
// stamp, preferring the compact date-only form when no time of day
// was given.
func parseWhen(input string) (string, error) {
	input = strings.TrimSpace(input)

	// Exact forms pass through unchanged so the stored shape matches
	// what the user typed.
	if _, _, err := model.ParseStamp(input); err == nil {
		return input, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	result, err := w.Parse(input, time.Now())
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", fmt.Errorf("unrecognized date %q", input)
	}

	t := result.Time
	if t.Hour() == 0 && t.Minute() == 0 {
		return t.Format(model.LayoutDateOnly), nil
	}
	return t.Format(model.LayoutNaive), nil
}

// resolveTask matches an id prefix or a case-insensitive title
// fragment against the visible tasks, falling back to the full
// collection for restore-style commands.
func resolveTask(s *store.Store, key string) string {
	lower := strings.ToLower(key)
	match := func(tasks []model.Task) string {
		for _, t := range tasks {
			if strings.HasPrefix(t.ID, key) {
				return t.ID
			}
		}
		for _, t := range tasks {
			if strings.Contains(strings.ToLower(t.Title), lower) {
				return t.ID
			}
		}
		return ""
	}
	if id := match(s.VisibleTasks()); id != "" {
		return id
	}
	return match(s.Document().Tasks)
}

// resolveProject matches an id prefix or title fragment against
// visible projects.
func resolveProject(s *store.Store, key string) string {
	lower := strings.ToLower(key)
	projects := s.VisibleProjects()
	for _, p := range projects {
		if strings.HasPrefix(p.ID, key) {
			return p.ID
		}
	}
	for _, p := range projects {
		if strings.Contains(strings.ToLower(p.Title), lower) {
			return p.ID
		}
	}
	return ""
}

// flushStore waits for pending writes so the command exits with data
// on disk.
func flushStore(cmd *cobra.Command, s *store.Store) error {
	if err := s.Flush(cmd.Context()); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}
	return nil
}
