package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abusi/clhorde/internal/config"
	"github.com/abusi/clhorde/internal/ipc"
	"github.com/abusi/clhorde/internal/protocol"
)

func dial() (*ipc.Client, error) {
	socketPath, err := config.SocketPath()
	if err != nil {
		return nil, err
	}
	return ipc.Dial(socketPath)
}

func submitCmd() *cobra.Command {
	var cwd, mode string
	var useWorktree bool
	var tags []string

	cmd := &cobra.Command{
		Use:   "submit <prompt>",
		Short: "Queue a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.Send(protocol.ClientRequest{
				Type:     protocol.ReqSubmitPrompt,
				Text:     args[0],
				Cwd:      cwd,
				Mode:     mode,
				Worktree: useWorktree,
				Tags:     tags,
			}); err != nil {
				return err
			}
			fmt.Println("submitted")
			return nil
		},
	}
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory for the worker")
	cmd.Flags().StringVar(&mode, "mode", "interactive", "worker mode (interactive, one-shot)")
	cmd.Flags().BoolVar(&useWorktree, "worktree", false, "run in an isolated git worktree")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag the prompt (repeatable)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			ev, err := c.Request(protocol.ClientRequest{Type: protocol.ReqGetState}, protocol.EvStateSnapshot)
			if err != nil {
				return err
			}
			state := ev.State
			fmt.Printf("workers: %d/%d  default mode: %s\n", state.ActiveWorkers, state.MaxWorkers, state.DefaultMode)
			if len(state.Prompts) == 0 {
				fmt.Println("no prompts")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tMODE\tELAPSED\tPROMPT")
			for _, p := range state.Prompts {
				elapsed := "-"
				if p.ElapsedSecs != nil {
					elapsed = fmt.Sprintf("%.0fs", *p.ElapsedSecs)
				}
				text := p.Text
				if len(text) > 60 {
					text = text[:57] + "..."
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Status, p.Mode, elapsed, text)
			}
			return w.Flush()
		},
	}
}

func outputCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "output <prompt-id>",
		Short: "Print a prompt's full output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePromptID(args[0])
			if err != nil {
				return err
			}
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			ev, err := c.Request(protocol.ClientRequest{Type: protocol.ReqGetPromptOutput, PromptID: id}, protocol.EvPromptOutput)
			if err != nil {
				return err
			}
			fmt.Print(ev.FullText)
			return nil
		},
	}
}

func storeCmd() *cobra.Command {
	store := &cobra.Command{
		Use:   "store",
		Short: "Manage the persistent prompt store",
	}

	store.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			ev, err := c.Request(protocol.ClientRequest{Type: protocol.ReqStoreList}, protocol.EvStoreListResult)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tUUID\tPROMPT")
			for _, p := range ev.Prompts {
				text := p.Text
				if len(text) > 50 {
					text = text[:47] + "..."
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Status, p.UUID, text)
			}
			return w.Flush()
		},
	})

	store.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Count stored prompts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			ev, err := c.Request(protocol.ClientRequest{Type: protocol.ReqStoreCount}, protocol.EvStoreCountResult)
			if err != nil {
				return err
			}
			fmt.Printf("pending: %d  running: %d  completed: %d  failed: %d\n",
				ev.Counts.Pending, ev.Counts.Running, ev.Counts.Completed, ev.Counts.Failed)
			return nil
		},
	})

	store.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the store directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			ev, err := c.Request(protocol.ClientRequest{Type: protocol.ReqStorePath}, protocol.EvStorePathResult)
			if err != nil {
				return err
			}
			fmt.Println(ev.Path)
			return nil
		},
	})

	store.AddCommand(storeFilterCmd("drop", "Delete prompts matching a filter", protocol.ReqStoreDrop))
	store.AddCommand(storeFilterCmd("keep", "Delete prompts NOT matching a filter (running prompts survive)", protocol.ReqStoreKeep))

	return store
}

func storeFilterCmd(verb, short, reqType string) *cobra.Command {
	return &cobra.Command{
		Use:       verb + " <all|completed|failed|pending|running>",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"all", "completed", "failed", "pending", "running"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			ev, err := c.Request(protocol.ClientRequest{Type: reqType, Filter: args[0]}, protocol.EvStoreOpComplete)
			if err != nil {
				return err
			}
			fmt.Println(ev.Message)
			return nil
		},
	}
}

func cleanWorktreesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean-worktrees",
		Short: "Remove worktrees of finished prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			ev, err := c.Request(protocol.ClientRequest{Type: protocol.ReqCleanWorktrees}, protocol.EvStoreOpComplete)
			if err != nil {
				return err
			}
			fmt.Println(ev.Message)
			return nil
		},
	}
}

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the daemon is alive",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			if _, err := c.Request(protocol.ClientRequest{Type: protocol.ReqPing}, protocol.EvPong); err != nil {
				return err
			}
			fmt.Println("pong")
			return nil
		},
	}
}

func shutdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			ev, err := c.Request(protocol.ClientRequest{Type: protocol.ReqShutdown}, protocol.EvStoreOpComplete)
			if err != nil {
				return err
			}
			fmt.Println(ev.Message)
			return nil
		},
	}
}

func parsePromptID(s string) (uint64, error) {
	var id uint64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid prompt id %q", s)
	}
	return id, nil
}
