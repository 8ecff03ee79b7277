package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath  string
	envFile     string
	accountID   int64
	accountName string
	permissions []string
	personaID   int64
	personaName string
	output      string
}

// newRootCmd builds the command tree. Each call returns an independent tree
// so tests can execute commands without shared flag state.
func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "bbs",
		Short: "bbs - bulletin board engine for multi-user worlds",
		Long: `bbs manages board collections, boards and threaded posts stored in Redis.

Every command runs as an account, optionally playing one of its personas.
Access is decided by lock strings on collections and boards, with a global
admin override from the configuration.

Board ids are the collection abbreviation followed by the board order
(GEN1), post ids are the post number with an optional reply (3 or 3.2).`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		// Prevent silent success when unknown flags are passed to root command
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		SilenceErrors:      true,
		SilenceUsage:       true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to bbs.yml (defaults to ./bbs.yml when present)")
	pf.StringVar(&flags.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	pf.Int64Var(&flags.accountID, "as-id", 0, "Account id to act as")
	pf.StringVar(&flags.accountName, "as-name", "", "Account name to act as")
	pf.StringSliceVar(&flags.permissions, "perm", nil, "Permission held by the account (repeatable)")
	pf.Int64Var(&flags.personaID, "persona-id", 0, "Persona id to post as on in-character boards")
	pf.StringVar(&flags.personaName, "persona-name", "", "Persona name to post as on in-character boards")
	pf.StringVarP(&flags.output, "output", "o", "default", "Output format (default, json or jsonl)")

	rootCmd.AddCommand(
		newInitCmd(),
		newCollectionCmd(flags),
		newBoardCmd(flags),
		newPostCmd(flags),
		newSessionCmd(flags),
		newWatchCmd(flags),
	)
	return rootCmd
}

// Execute runs the CLI. This is called by main.main().
func Execute() error {
	return newRootCmd().Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
