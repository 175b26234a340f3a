package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new project",
	Long: `Creates a project and provisions its private graph database
instance. The id is printed immediately; provisioning continues on the
server, poll "genograph info <id>" until the status settles.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := adminClient().CreateProject(context.Background(), args[0])
		if err != nil {
			return err
		}
		color.Green("✓ Created project %d (%s)", id, args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project",
	Long: `Deletes a project: its record, its tasks, its ports, and its files.
The server refuses when the project's database instance cannot be stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[0])
		}
		if err := adminClient().DeleteProject(context.Background(), id); err != nil {
			return err
		}
		color.Green("✓ Deleted project %d", id)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info [id]",
	Short: "Show project status, or list all projects",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			status, err := adminClient().ProjectStatus(ctx, id)
			if err != nil {
				return err
			}
			printStatus(strconv.FormatInt(id, 10), "", status)
			return nil
		}

		listing, err := adminClient().ListProjects(ctx)
		if err != nil {
			return err
		}
		if listing == "" {
			fmt.Println("no projects")
			return nil
		}
		for _, line := range strings.Split(listing, "\n") {
			fields := strings.SplitN(line, "\t", 3)
			if len(fields) != 3 {
				fmt.Println(line)
				continue
			}
			printStatus(fields[1], fields[0], fields[2])
		}
		return nil
	},
}

var dbCmd = &cobra.Command{
	Use:   "db <id> <start|stop|status>",
	Short: "Control a project's graph database instance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[0])
		}
		command := strings.ToUpper(args[1])
		reply, err := adminClient().ControlDB(context.Background(), id, command)
		if err != nil {
			return err
		}
		if reply == "-5" {
			return fmt.Errorf("unknown db command %q", args[1])
		}
		fmt.Println(reply)
		return nil
	},
}

func printStatus(id, name, status string) {
	paint := color.New(color.FgYellow)
	switch {
	case strings.HasSuffix(status, "FAILED"):
		paint = color.New(color.FgRed)
	case status == "INIT_SUCCESS" || status == "DB_RUNNING":
		paint = color.New(color.FgGreen)
	}
	if name != "" {
		fmt.Printf("%s  %s  %s\n", id, name, paint.Sprint(status))
		return
	}
	fmt.Printf("%s  %s\n", id, paint.Sprint(status))
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(dbCmd)
}
