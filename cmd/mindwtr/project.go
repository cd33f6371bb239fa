package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mindwtr/mindwtr/internal/model"
	"github.com/mindwtr/mindwtr/internal/store"
	"github.com/mindwtr/mindwtr/internal/ui"
)

var projectArea string

var projectCmd = &cobra.Command{
	Use:     "project",
	GroupID: "organize",
	Short:   "Manage projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		projects := s.VisibleProjects()
		if len(projects) == 0 {
			fmt.Println(ui.Muted("No projects."))
			return nil
		}

		counts := map[string]int{}
		for _, t := range s.VisibleTasks() {
			counts[t.ProjectID]++
		}

		byArea := map[string][]model.Project{}
		for _, p := range projects {
			byArea[p.AreaID] = append(byArea[p.AreaID], p)
		}
		for _, a := range s.Areas() {
			group := byArea[a.ID]
			if len(group) == 0 {
				continue
			}
			fmt.Println(ui.Header(a.Name))
			for i := range group {
				fmt.Println(ui.ProjectLine(&group[i], counts[group[i].ID]))
			}
		}
		if unfiled := byArea[""]; len(unfiled) > 0 {
			if len(unfiled) != len(projects) {
				fmt.Println(ui.Header("Unfiled"))
			}
			for i := range unfiled {
				fmt.Println(ui.ProjectLine(&unfiled[i], counts[unfiled[i].ID]))
			}
		}
		return nil
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a project (idempotent on title)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		var props *store.ProjectUpdate
		if projectArea != "" {
			area, err := s.AddArea(projectArea, nil)
			if err != nil {
				return err
			}
			props = &store.ProjectUpdate{AreaID: &area.ID}
		}

		project, err := s.AddProject(args[0], props)
		if err != nil {
			return err
		}
		fmt.Printf("Project %s %s\n", ui.ShortID(project.ID), project.Title)
		return flushStore(cmd, s)
	},
}

var projectFocusCmd = &cobra.Command{
	Use:   "focus <project>",
	Short: "Toggle a project's focus (max 5 focused)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		id := resolveProject(s, args[0])
		if id == "" {
			return fmt.Errorf("no project matching %q", args[0])
		}
		s.ToggleProjectFocus(id)
		return flushStore(cmd, s)
	},
}

var projectArchiveCmd = &cobra.Command{
	Use:   "archive <project>",
	Short: "Archive a project and its remaining tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		id := resolveProject(s, args[0])
		if id == "" {
			return fmt.Errorf("no project matching %q", args[0])
		}
		status := model.ProjectArchived
		project := s.UpdateProject(id, &store.ProjectUpdate{Status: &status})
		if project != nil {
			fmt.Printf("Archived %s %s\n", ui.ShortID(project.ID), project.Title)
		}
		return flushStore(cmd, s)
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm <project>",
	Short: "Delete a project, its sections and tasks (recoverable)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		id := resolveProject(s, args[0])
		if id == "" {
			return fmt.Errorf("no project matching %q", args[0])
		}
		s.DeleteProject(id)
		fmt.Printf("Deleted project %s\n", ui.ShortID(id))
		return flushStore(cmd, s)
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectArea, "area", "", "file the project under this area (created if missing)")
	projectCmd.AddCommand(projectListCmd, projectAddCmd, projectFocusCmd, projectArchiveCmd, projectRmCmd)
	rootCmd.AddCommand(projectCmd)
}
