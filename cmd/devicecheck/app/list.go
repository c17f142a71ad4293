package app

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/treyturner/ninjaone-e2e/internal/models"
)

func newListCommand(global *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the devices the API reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.load(cmd)
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			client, err := newClient(cfg, logger)
			if err != nil {
				return err
			}
			devices, err := client.ListDevices(cmd.Context())
			if err != nil {
				return fmt.Errorf("list devices: %w", err)
			}
			if asJSON {
				return writeDevicesJSON(cmd.OutOrStdout(), devices)
			}
			return writeDevicesTable(cmd.OutOrStdout(), devices)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func writeDevicesJSON(w io.Writer, devices []models.Device) error {
	if devices == nil {
		devices = []models.Device{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(devices)
}

func writeDevicesTable(w io.Writer, devices []models.Device) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSYSTEM NAME\tTYPE\tCAPACITY")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.SystemName, d.Type.Label(), models.FormatCapacity(d.HDDCapacity))
	}
	return tw.Flush()
}
