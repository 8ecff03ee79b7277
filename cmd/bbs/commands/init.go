package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyluth/bbs/internal/printer"
	"github.com/dyluth/bbs/internal/scaffold"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter bbs.yml and .env.example",
		Long: `Write a starter configuration into the directory (default: the current one).

Creates:
  • bbs.yml      - Instance, Redis, admin override and option declarations
  • .env.example - The environment variables that override bbs.yml

Use --force to overwrite existing files.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			created, err := scaffold.Initialize(dir, force)
			if err != nil {
				return printer.Error("initialization failed", err.Error(), nil)
			}

			printer.Success("Initialized bbs configuration\n")
			for _, path := range created {
				printer.Info("  ✓ %s\n", path)
			}
			printer.Info("\nNext steps:\n")
			printer.Info("  1. Set redis_url and admin_override in bbs.yml\n")
			printer.Info("  2. Create a collection: bbs --as-id 1 --as-name Admin --perm Admin collection create General -a GEN\n")
			printer.Info("  3. Run bbsd to serve the HTTP API\n")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing bbs.yml and .env.example")
	return cmd
}
