package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyluth/bbs/internal/engine"
	"github.com/dyluth/bbs/internal/printer"
)

func newCollectionCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"collections", "bc"},
		Short:   "Manage board collections",
		Long: `Board collections group boards under a shared abbreviation.

A collection is addressed by numeric id, name or abbreviation. Use the
literal "none" for an empty abbreviation. Creating, deleting, locking and
listing collections requires the admin override.`,
	}

	var abbreviation string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a board collection",
		Example: `  bbs collection create General --abbreviation GEN
  bbs collection create "Staff Boards" --abbreviation none`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, engine.TargetCollection, "create", map[string]interface{}{
				engine.ArgName:         args[0],
				engine.ArgAbbreviation: abbreviationArg(abbreviation),
			})
		},
	}
	create.Flags().StringVarP(&abbreviation, "abbreviation", "a", "", "Abbreviation used in board ids (up to 10 letters, or none)")
	create.MarkFlagRequired("abbreviation")

	var confirm string
	del := &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete a board collection and all its boards",
		Long: `Delete a board collection. When the collection still has boards the
deletion must be confirmed by passing its exact name with --confirm.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, engine.TargetCollection, "delete", map[string]interface{}{
				engine.ArgCollectionID: args[0],
				engine.ArgValidate:     confirm,
			})
		},
	}
	del.Flags().StringVar(&confirm, "confirm", "", "Exact collection name, required when boards exist")

	rename := &cobra.Command{
		Use:   "rename <collection> <new-name>",
		Short: "Rename a board collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, engine.TargetCollection, "rename", map[string]interface{}{
				engine.ArgCollectionID: args[0],
				engine.ArgName:         args[1],
			})
		},
	}

	reabbreviate := &cobra.Command{
		Use:   "reabbreviate <collection> <abbreviation|none>",
		Short: "Change the abbreviation used in a collection's board ids",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, engine.TargetCollection, "reabbreviate", map[string]interface{}{
				engine.ArgCollectionID: args[0],
				engine.ArgAbbreviation: abbreviationArg(args[1]),
			})
		},
	}

	lock := &cobra.Command{
		Use:     "lock <collection> <lockstring>",
		Short:   "Merge capabilities into a collection's lock string",
		Example: `  bbs collection lock GEN "read:perm(Player);admin:perm(Builder)"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, engine.TargetCollection, "setLock", map[string]interface{}{
				engine.ArgCollectionID: args[0],
				engine.ArgLockstring:   args[1],
			})
		},
	}

	configCmd := &cobra.Command{
		Use:   "config <collection> [key value]",
		Short: "Show or set collection options",
		Example: `  bbs collection config GEN
  bbs collection config GEN default_locks "read:all();post:perm(Player)"`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(cmd, flags, engine.TargetCollection, engine.ArgCollectionID, args)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List board collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, engine.TargetCollection, "list", nil)
		},
	}

	cmd.AddCommand(create, del, rename, reabbreviate, lock, configCmd, list)
	return cmd
}

// runConfig lists options with one argument and sets one with three.
func runConfig(cmd *cobra.Command, flags *globalFlags, target engine.Target, idArg string, args []string) error {
	switch len(args) {
	case 1:
		return run(cmd, flags, target, "listConfig", map[string]interface{}{idArg: args[0]})
	case 3:
		return run(cmd, flags, target, "setConfig", map[string]interface{}{
			idArg:           args[0],
			engine.ArgKey:   args[1],
			engine.ArgValue: args[2],
		})
	}
	return printer.Error("invalid arguments", "Give only the id to list options, or the id, key and value to set one.", nil)
}
