package commands

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/bbs/internal/filter"
	"github.com/dyluth/bbs/internal/listing"
	"github.com/dyluth/bbs/internal/printer"
	"github.com/dyluth/bbs/internal/watch"
	"github.com/dyluth/bbs/pkg/bbs"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var staff bool
	var criteria filter.Criteria

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream new-post notifications and staff alerts",
		Long: `Stream the notifications delivered to the acting account (and persona,
if given) as they are posted. With --staff, administrative alerts such as
board creation and deletion are streamed too.

--board takes a glob over board ids (GEN*) and --author an author name;
both only narrow notifications, never staff alerts.

Output Formats:
  default - One coloured line per event
  json    - Line-delimited JSON for programmatic processing

The identity must also be connected (bbs session connect) to receive
notifications.`,
		Example: `  bbs --as-id 2 --as-name alice watch
  bbs --as-id 2 --as-name alice watch --board "GEN*"
  bbs --as-id 1 --as-name Admin --perm Admin watch --staff --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := listing.ParseFormat(flags.output)
			if err != nil {
				return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json"})
			}
			account, persona, err := flags.identities()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx, flags)
			if err != nil {
				return err
			}
			defer rt.Close()

			opts := watch.Options{Identities: []bbs.Identity{account}, Staff: staff}
			if criteria.HasFilters() {
				opts.Filter = &criteria
			}
			if persona != nil {
				opts.Identities = append(opts.Identities, *persona)
			}

			printer.Step("Watching instance '%s' (Ctrl+C to stop)\n", rt.cfg.Instance)
			err = watch.Stream(ctx, rt.client, opts, streamHandler(cmd.OutOrStdout(), format))
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&staff, "staff", false, "Also stream staff alerts")
	cmd.Flags().StringVar(&criteria.BoardGlob, "board", "", "Only notifications for boards matching this glob")
	cmd.Flags().StringVar(&criteria.Author, "author", "", "Only notifications for posts by this author")
	return cmd
}

func streamHandler(w io.Writer, format listing.OutputFormat) watch.Handler {
	if format != listing.OutputFormatDefault {
		enc := json.NewEncoder(w)
		return watch.Handler{
			Notification: func(n *bbs.Notification) {
				enc.Encode(map[string]interface{}{"event": "notification", "data": n})
			},
			Alert: func(a *bbs.StaffAlert) {
				enc.Encode(map[string]interface{}{"event": "staff_alert", "data": a})
			},
			Error: func(err error) {
				enc.Encode(map[string]interface{}{"event": "error", "error": err.Error()})
			},
		}
	}
	return watch.Handler{
		Notification: func(n *bbs.Notification) { printer.Notice(n.Message) },
		Alert:        func(a *bbs.StaffAlert) { printer.Alert(a.System, a.Message) },
		Error:        func(err error) { printer.Warning("%v\n", err) },
	}
}
