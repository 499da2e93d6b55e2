package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/promptloom/pkg/domain"
)

func newSessionCmd(st *runtimeState) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage chat sessions",
		Long: `Create, list, inspect, extend and remove the chat sessions that chat://
variables render. Use a persistent store (--store file, redis) so sessions
outlive the command.`,
	}
	sessionCmd.AddCommand(
		newSessionLsCmd(st),
		newSessionCreateCmd(st),
		newSessionInspectCmd(st),
		newSessionAppendCmd(st),
		newSessionRenderCmd(st),
		newSessionRmCmd(st),
	)
	return sessionCmd
}

func newSessionLsCmd(st *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List all sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := st.app()
			if err != nil {
				return err
			}
			defer app.Close()

			sessions, err := app.Sessions.Summaries(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing sessions: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintf(out, "- %s  %s (%d messages)\n", s.ID, s.Name, s.MessageCount)
			}
			return nil
		},
	}
}

func newSessionCreateCmd(st *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create an empty session and print its ID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := st.app()
			if err != nil {
				return err
			}
			defer app.Close()

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			s, err := app.Sessions.Create(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.ID)
			return nil
		},
	}
}

func newSessionInspectCmd(st *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <session-id>",
		Short: "Print a session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := st.app()
			if err != nil {
				return err
			}
			defer app.Close()

			s, err := app.Sessions.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error loading session '%s': %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}
}

func newSessionAppendCmd(st *runtimeState) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "append <session-id> <content>...",
		Short: "Append a message to a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := st.app()
			if err != nil {
				return err
			}
			defer app.Close()

			content := strings.Join(args[1:], " ")
			s, err := app.Sessions.Append(cmd.Context(), args[0], role, content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session '%s' now has %d messages\n", s.ID, len(s.Messages))
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "user", "Message role: user, assistant, system, tool or any other label")
	return cmd
}

func newSessionRenderCmd(st *runtimeState) *cobra.Command {
	var maxMessages int
	cmd := &cobra.Command{
		Use:   "render <session-id>",
		Short: "Print the session tail the way chat:// variables see it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := st.app()
			if err != nil {
				return err
			}
			defer app.Close()

			text, err := app.Sessions.Render(cmd.Context(), args[0], maxMessages)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxMessages, "max-messages", domain.DefaultMaxMessages, "Number of most recent messages")
	return cmd
}

func newSessionRmCmd(st *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <session-id>...",
		Short: "Remove one or more sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := st.app()
			if err != nil {
				return err
			}
			defer app.Close()

			var errs []error
			for _, id := range args {
				if err := app.Sessions.Delete(cmd.Context(), id); err != nil {
					errs = append(errs, fmt.Errorf("error removing '%s': %w", id, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
			}
			return errors.Join(errs...)
		},
	}
}
