package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect a project's asynchronous tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List a project's tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		listing, err := adminClient().TaskList(context.Background(), projectID)
		if err != nil {
			return err
		}
		if listing == "" {
			fmt.Println("no tasks")
			return nil
		}
		for _, line := range strings.Split(listing, "\n") {
			fields := strings.SplitN(line, "_", 3)
			if len(fields) != 3 {
				fmt.Println(line)
				continue
			}
			fmt.Printf("%s  %s  (%s)\n", fields[0], fields[1], fields[2])
		}
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <project-id> <task-id>...",
	Short: "Show the status of one or more tasks",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		statuses, err := adminClient().TaskStatus(context.Background(), projectID, args[1:]...)
		if err != nil {
			return err
		}
		for i, status := range strings.Split(statuses, "\t") {
			fmt.Printf("%s  %s\n", args[1+i], status)
		}
		return nil
	},
}

var taskResultCmd = &cobra.Command{
	Use:   "result <project-id> <task-id>",
	Short: "Fetch a task's results",
	Long: `Fetches and prints a task's results. Results are single-fetch: the
task is removed afterwards and a second fetch fails.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		result, err := adminClient().TaskResult(context.Background(), projectID, args[1])
		if err != nil {
			return err
		}
		if result == "-1" {
			return fmt.Errorf("no task %s in project %d", args[1], projectID)
		}
		fmt.Println(result)
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <project-id> <task-id>",
	Short: "Discard a task without fetching its results",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		reply, err := adminClient().TaskDelete(context.Background(), projectID, args[1])
		if err != nil {
			return err
		}
		if reply != "Deleted" {
			return fmt.Errorf("no task %s in project %d", args[1], projectID)
		}
		fmt.Println(reply)
		return nil
	},
}

func parseProjectID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid project id %q", raw)
	}
	return id, nil
}

func init() {
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskResultCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	rootCmd.AddCommand(taskCmd)
}
