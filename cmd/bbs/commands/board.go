package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dyluth/bbs/internal/engine"
	"github.com/dyluth/bbs/internal/printer"
)

func newBoardCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "board",
		Aliases: []string{"boards", "bb"},
		Short:   "Manage boards",
		Long: `Boards live inside a collection and are addressed as <ABBREVIATION><order>,
for example GEN1. Creating and deleting boards requires collection admin;
renaming, reordering, locking and configuring a board requires board admin.`,
	}

	var order int
	create := &cobra.Command{
		Use:   "create <collection> <name>",
		Short: "Create a board in a collection",
		Example: `  bbs board create GEN Announcements
  bbs board create GEN "Trade" --order 5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kwargs := map[string]interface{}{
				engine.ArgCollectionID: args[0],
				engine.ArgName:         args[1],
			}
			if cmd.Flags().Changed("order") {
				kwargs[engine.ArgOrder] = order
			}
			return run(cmd, flags, engine.TargetBoard, "create", kwargs)
		},
	}
	create.Flags().IntVar(&order, "order", 0, "Board order within the collection (defaults to the next free)")

	rename := &cobra.Command{
		Use:   "rename <board> <new-name>",
		Short: "Rename a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, engine.TargetBoard, "rename", map[string]interface{}{
				engine.ArgBoardID: args[0],
				engine.ArgName:    args[1],
			})
		},
	}

	reorder := &cobra.Command{
		Use:     "reorder <board> <order>",
		Short:   "Move a board to a new order, changing its id",
		Example: `  bbs board reorder GEN2 7   # GEN2 becomes GEN7`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return printer.Error("invalid order", "Board order must be a positive whole number.", nil)
			}
			return run(cmd, flags, engine.TargetBoard, "reorder", map[string]interface{}{
				engine.ArgBoardID: args[0],
				engine.ArgOrder:   n,
			})
		},
	}

	lock := &cobra.Command{
		Use:     "lock <board> <lockstring>",
		Short:   "Merge capabilities into a board's lock string",
		Example: `  bbs board lock GEN1 "post:perm(Admin)"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, engine.TargetBoard, "setLock", map[string]interface{}{
				engine.ArgBoardID:    args[0],
				engine.ArgLockstring: args[1],
			})
		},
	}

	var confirm string
	del := &cobra.Command{
		Use:   "delete <board>",
		Short: "Delete a board and its posts",
		Long: `Delete a board. When the board still has posts the deletion must be
confirmed by passing its exact name with --confirm.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, engine.TargetBoard, "delete", map[string]interface{}{
				engine.ArgBoardID:  args[0],
				engine.ArgValidate: confirm,
			})
		},
	}
	del.Flags().StringVar(&confirm, "confirm", "", "Exact board name, required when posts exist")

	configCmd := &cobra.Command{
		Use:   "config <board> [key value]",
		Short: "Show or set board options",
		Example: `  bbs board config GEN1
  bbs board config GEN1 ic true`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(cmd, flags, engine.TargetBoard, engine.ArgBoardID, args)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the boards you can read, with unread counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, engine.TargetBoard, "list", nil)
		},
	}

	cmd.AddCommand(create, rename, reorder, lock, del, configCmd, list)
	return cmd
}
