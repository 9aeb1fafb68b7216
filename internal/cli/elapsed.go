package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"elapsed_tracker/internal/domain/elapsed"
	"elapsed_tracker/internal/infra/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "elapsed",
		Short: "Print the time elapsed since the start date",
		RunE:  runElapsed,
	}

	cmd.Flags().String("at", "", "Instant to measure at, RFC3339 (default: now)")
	cmd.Flags().String("epoch", "", "Start date, RFC3339 (default: $EPOCH)")

	RootCmd.AddCommand(cmd)
}

type elapsedOutput struct {
	Epoch      time.Time         `json:"epoch"`
	At         time.Time         `json:"at"`
	Breakdown  elapsed.Breakdown `json:"breakdown"`
	HourBucket int64             `json:"hour_bucket"`
	Summary    string            `json:"summary"`
}

func runElapsed(cmd *cobra.Command, args []string) error {
	atStr, _ := cmd.Flags().GetString("at")
	epochStr, _ := cmd.Flags().GetString("epoch")

	var epoch time.Time
	if epochStr != "" {
		var err error
		if epoch, err = elapsed.ParseEpoch(epochStr); err != nil {
			return err
		}
	} else {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		epoch = cfg.Epoch
	}

	at := elapsed.SystemClock{}.Now()
	if atStr != "" {
		var err error
		if at, err = time.Parse(time.RFC3339, atStr); err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}

	return renderElapsed(cmd.OutOrStdout(), epoch, at, formatFlag)
}

func renderElapsed(w io.Writer, epoch, at time.Time, format string) error {
	out := elapsedOutput{
		Epoch:      epoch,
		At:         at,
		Breakdown:  elapsed.Decompose(epoch, at),
		HourBucket: elapsed.HourBucket(epoch, at),
	}
	out.Summary = out.Breakdown.Widget()

	switch format {
	case "json":
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "text":
		_, err := fmt.Fprintf(w, "%s\n%s\nhour %d since %s\n",
			out.Breakdown, out.Summary, out.HourBucket, epoch.Format(time.RFC3339))
		return err
	default:
		return fmt.Errorf("unknown format %q: use json or text", format)
	}
}
