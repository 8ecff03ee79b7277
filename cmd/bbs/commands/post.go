package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/bbs/internal/engine"
	"github.com/dyluth/bbs/internal/printer"
)

// bodyArg returns the post body from args or, for "-", from stdin.
func bodyArg(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read body from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func newPostCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "post",
		Aliases: []string{"posts"},
		Short:   "Read and write posts",
		Long: `Posts are numbered per board. Replies are numbered under their root post,
so the second reply to post 3 is 3.2. Pass "-" as the body to read it from
stdin.`,
	}

	var disguise string
	create := &cobra.Command{
		Use:     "create <board> <subject> <body|->",
		Short:   "Start a new thread",
		Example: `  bbs post create GEN1 "Server move" "We move on Friday."`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := bodyArg(cmd, args[2])
			if err != nil {
				return err
			}
			return run(cmd, flags, engine.TargetPost, "create", map[string]interface{}{
				engine.ArgBoardID:  args[0],
				engine.ArgSubject:  args[1],
				engine.ArgBody:     body,
				engine.ArgDisguise: disguise,
			})
		},
	}
	create.Flags().StringVar(&disguise, "disguise", "", "Name shown instead of yours on disguise boards")

	var replySubject, replyDisguise string
	reply := &cobra.Command{
		Use:     "reply <board> <post> <body|->",
		Short:   "Reply to a thread",
		Example: `  bbs post reply GEN1 3 "Sounds good."`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := bodyArg(cmd, args[2])
			if err != nil {
				return err
			}
			return run(cmd, flags, engine.TargetPost, "reply", map[string]interface{}{
				engine.ArgBoardID:  args[0],
				engine.ArgPostID:   args[1],
				engine.ArgSubject:  replySubject,
				engine.ArgBody:     body,
				engine.ArgDisguise: replyDisguise,
			})
		},
	}
	reply.Flags().StringVar(&replySubject, "subject", "", "Subject (defaults to RE: <original subject>)")
	reply.Flags().StringVar(&replyDisguise, "disguise", "", "Name shown instead of yours on disguise boards")

	read := &cobra.Command{
		Use:   "read <board> <post>",
		Short: "Read a post and mark it read",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, engine.TargetPost, "read", map[string]interface{}{
				engine.ArgBoardID: args[0],
				engine.ArgPostID:  args[1],
			})
		},
	}

	var page, perPage int
	list := &cobra.Command{
		Use:   "list <board>[.<page>]",
		Short: "List a page of posts, newest page first",
		Example: `  bbs post list GEN1
  bbs post list GEN1.2
  bbs post list GEN1 --page 1 --per-page 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kwargs := map[string]interface{}{engine.ArgBoardID: args[0]}
			if cmd.Flags().Changed("page") {
				kwargs[engine.ArgPage] = page
			}
			if cmd.Flags().Changed("per-page") {
				if perPage < 1 {
					return printer.Error("invalid page size", "--per-page must be a positive whole number.", nil)
				}
				kwargs[engine.ArgPostsPerPage] = perPage
			}
			return run(cmd, flags, engine.TargetPost, "list", kwargs)
		},
	}
	list.Flags().IntVar(&page, "page", 0, "Page number (1 is the oldest; defaults to the newest)")
	list.Flags().IntVar(&perPage, "per-page", 0, "Posts per page (defaults to posts_per_page from the config)")

	remove := &cobra.Command{
		Use:   "remove <board> <post>",
		Short: "Remove a post (author or board admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, flags, engine.TargetPost, "remove", map[string]interface{}{
				engine.ArgBoardID: args[0],
				engine.ArgPostID:  args[1],
			})
		},
	}

	cmd.AddCommand(create, reply, read, list, remove)
	return cmd
}
