package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sedfit/internal/model"
)

var showFlags struct {
	run   string
	index int
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print one stored result record as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetRecord(ctx, showFlags.run, showFlags.index)
		if err != nil {
			return eris.Wrap(err, "show")
		}
		return writeRecord(os.Stdout, rec)
	},
}

func init() {
	showCmd.Flags().StringVar(&showFlags.run, "run", "", "run ID")
	showCmd.Flags().IntVar(&showFlags.index, "index", 0, "star index in the catalog")
	_ = showCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(showCmd)
}

func writeRecord(w io.Writer, rec *model.ResultRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(rec), "encode record")
}
