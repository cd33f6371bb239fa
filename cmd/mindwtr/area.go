package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mindwtr/mindwtr/internal/model"
	"github.com/mindwtr/mindwtr/internal/ui"
)

var areaCmd = &cobra.Command{
	Use:     "area",
	GroupID: "organize",
	Short:   "Manage areas of responsibility",
}

var areaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List areas",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		areas := s.Areas()
		if len(areas) == 0 {
			fmt.Println(ui.Muted("No areas."))
			return nil
		}
		counts := map[string]int{}
		for _, p := range s.VisibleProjects() {
			counts[p.AreaID]++
		}
		for _, a := range areas {
			fmt.Printf("%s %s %s\n",
				ui.ShortID(a.ID), a.Name,
				ui.Muted(fmt.Sprintf("(%d projects)", counts[a.ID])))
		}
		return nil
	},
}

var areaAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an area (idempotent on name)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		area, err := s.AddArea(args[0], nil)
		if err != nil {
			return err
		}
		fmt.Printf("Area %s %s\n", ui.ShortID(area.ID), area.Name)
		return flushStore(cmd, s)
	},
}

var areaRmCmd = &cobra.Command{
	Use:   "rm <area>",
	Short: "Remove an area, unfiling its projects and tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		id := resolveArea(s.Areas(), args[0])
		if id == "" {
			return fmt.Errorf("no area matching %q", args[0])
		}
		s.DeleteArea(id)
		fmt.Printf("Removed area %s\n", ui.ShortID(id))
		return flushStore(cmd, s)
	},
}

func resolveArea(areas []model.Area, key string) string {
	lower := strings.ToLower(key)
	for _, a := range areas {
		if strings.HasPrefix(a.ID, key) {
			return a.ID
		}
	}
	for _, a := range areas {
		if strings.Contains(strings.ToLower(a.Name), lower) {
			return a.ID
		}
	}
	return ""
}

func init() {
	areaCmd.AddCommand(areaListCmd, areaAddCmd, areaRmCmd)
	rootCmd.AddCommand(areaCmd)
}
