package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/render"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List or register projects",
	Long: `List or register projects.

A project names a working directory. Launches run against a project, and
agent processes execute inside its directory so they can read the code the
question is about.`,
	RunE: runProjectsList,
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE:  runProjectsList,
}

var projectsAddCmd = &cobra.Command{
	Use:   "add <name> [dir]",
	Short: "Register a project directory",
	Long: `Register a directory as a project. The directory defaults to the current
working directory and must exist.

Examples:
  conclave projects add api-server
  conclave projects add frontend ~/code/frontend`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runProjectsAdd,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsAddCmd)
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	projects, err := st.ListProjects(context.Background())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("No projects yet. Register one with 'conclave projects add'.")
		return nil
	}

	r := render.New()
	for _, p := range projects {
		fmt.Println(r.ProjectLine(p))
	}
	return nil
}

func runProjectsAdd(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	dir := ""
	if len(args) > 1 {
		dir = args[1]
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = cwd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("project directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", abs)
	}

	p := council.NewProject(args[0], abs)
	if err := st.SaveProject(context.Background(), p); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	fmt.Printf("Registered project %s\n", p.Name)
	fmt.Println(render.Muted.Render(p.ID))
	fmt.Println(render.Muted.Render(abs))
	return nil
}
