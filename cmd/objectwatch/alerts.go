package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"objectwatch/internal/status"
	"objectwatch/internal/store"
)

var (
	alertsStore    string
	alertsSession  string
	alertsKind     string
	alertsSince    time.Duration
	alertsLimit    int
	alertsJSON     bool
	alertsSessions bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List stored alerts",
	Long:  "alerts reads the SQLite alert history written by watch --store, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := alertsStore
		if path == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path = cfg.Store.Path
		}
		if path == "" {
			return fmt.Errorf("no alert store configured; pass --store")
		}
		if alertsKind != "" && alertsKind != status.KindMovement && alertsKind != status.KindMissing {
			return fmt.Errorf("unknown alert kind %q", alertsKind)
		}

		st, err := store.Open(path)
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if alertsSessions {
			sessions, err := st.Sessions(ctx)
			if err != nil {
				return err
			}
			if alertsJSON {
				return json.NewEncoder(out).Encode(sessions)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tTARGET\tSTARTED\tALERTS")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.TargetClass, s.StartedAt.Format(time.RFC3339), s.Alerts)
			}
			return tw.Flush()
		}

		q := store.Query{SessionID: alertsSession, Kind: alertsKind, Limit: alertsLimit}
		if alertsSince > 0 {
			q.Since = time.Now().Add(-alertsSince)
		}
		rows, err := st.RecentAlerts(ctx, q)
		if err != nil {
			return err
		}
		if alertsJSON {
			enc := json.NewEncoder(out)
			for _, a := range rows {
				if err := enc.Encode(a); err != nil {
					return err
				}
			}
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tKIND\tOBJECT\tFRAME\tDETAIL")
		for _, a := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", a.Timestamp.Local().Format(time.RFC3339), a.Kind, a.IdentityID, a.Frame, a)
		}
		return tw.Flush()
	},
}

func init() {
	f := alertsCmd.Flags()
	f.StringVar(&alertsStore, "store", "", "SQLite alert history path (defaults to config store.path)")
	f.StringVar(&alertsSession, "session", "", "Only alerts from this session")
	f.StringVar(&alertsKind, "kind", "", "Only alerts of this kind: movement or missing")
	f.DurationVar(&alertsSince, "since", 0, "Only alerts newer than this (e.g. 1h)")
	f.IntVar(&alertsLimit, "limit", 50, "Maximum alerts to list (0 lists all)")
	f.BoolVar(&alertsJSON, "json", false, "Print JSON instead of a table")
	f.BoolVar(&alertsSessions, "sessions", false, "List sessions instead of alerts")
}
