package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/bbs/internal/printer"
	"github.com/dyluth/bbs/pkg/bbs"
)

func newSessionCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Mark identities online or offline",
		Long: `Online identities receive new-post notifications. Accounts are notified
for out-of-character boards and personas for in-character boards. With
--persona-id/--persona-name both the account and the persona are updated.`,
	}

	connect := &cobra.Command{
		Use:   "connect",
		Short: "Mark the acting account (and persona) online",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, flags, true)
		},
	}
	disconnect := &cobra.Command{
		Use:   "disconnect",
		Short: "Mark the acting account (and persona) offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, flags, false)
		},
	}

	cmd.AddCommand(connect, disconnect)
	return cmd
}

func runSession(cmd *cobra.Command, flags *globalFlags, online bool) error {
	account, persona, err := flags.identities()
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer rt.Close()

	identities := []bbs.Identity{account}
	if persona != nil {
		identities = append(identities, *persona)
	}

	for _, identity := range identities {
		action, verb := rt.client.Connect, "connected"
		if !online {
			action, verb = rt.client.Disconnect, "disconnected"
		}
		if err := action(cmd.Context(), identity); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		printer.Success("%s %s (%d) %s\n", identity.Kind, identity.Name, identity.ID, verb)
	}
	return nil
}
