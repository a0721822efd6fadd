package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"objectwatch/internal/dashboard"
)

var (
	dashboardOut    string
	dashboardBucket string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards",
	Long: "dashboard renders Grafana dashboards for the configured status and alert tables. " +
		"Datasource UIDs are read from GREPTIMEDB_DATASOURCE_UID and INFLUXDB_DATASOURCE_UID.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		bucket := dashboardBucket
		if bucket == "" {
			bucket = cfg.Outputs.Influx.Bucket
		}
		if bucket == "" {
			bucket = "objectwatch"
		}
		written, err := dashboard.Render(dashboardOut, dashboard.Tables{
			StatusTable: cfg.Outputs.Greptime.StatusTable,
			AlertTable:  cfg.Outputs.Greptime.AlertTable,
			Bucket:      bucket,
		})
		if err != nil {
			return err
		}
		for _, p := range written {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Output directory")
	dashboardCmd.Flags().StringVar(&dashboardBucket, "bucket", "", "InfluxDB bucket (defaults to config outputs.influx.bucket)")
}
