package exporter

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"hoover/pkg/ledger"
	"hoover/pkg/types"
)

// PrintRuns 以表格打印运行列表 (最新的在前)
func PrintRuns(runs []ledger.Run, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "RUN\tSTARTED\tSTATUS\tFILES\tSIZE\tDESTINATION\n")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Files, fmtSize(r.Bytes), r.Destination)
	}
	return tw.Flush()
}

// PrintRun 打印单次运行的详情和其中的每个对象
func PrintRun(r *ledger.Run, w io.Writer) error {
	fmt.Fprintf(w, "Run:         %s\n", r.ID)
	fmt.Fprintf(w, "Node:        %s\n", r.NodeID)
	fmt.Fprintf(w, "Task:        %s\n", r.TaskID)
	fmt.Fprintf(w, "Destination: %s\n", r.Destination)
	fmt.Fprintf(w, "Status:      %s\n", r.Status)
	fmt.Fprintf(w, "Started:     %s\n", r.StartedAt.Local().Format(time.RFC3339))
	if r.FinishedAt != nil {
		fmt.Fprintf(w, "Finished:    %s\n", r.FinishedAt.Local().Format(time.RFC3339))
	}
	if r.ManifestName != "" {
		fmt.Fprintf(w, "Manifest:    %s (%s)\n", r.ManifestName, types.Hash(r.ManifestHash).Short())
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", r.Error)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "TYPE\tHASH\tSIZE\tORIGINAL\tNAME\n")
	for _, s := range r.Shipments {
		typ := s.Type
		if typ == "" {
			typ = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", typ, types.Hash(s.Hash).Short(), fmtSize(s.Size), fmtSize(s.SizeOriginal), s.Filename)
	}
	return tw.Flush()
}

func fmtSize(s int64) string {
	if s < 1024 {
		return fmt.Sprintf("%dB", s)
	} else if s < 1024*1024 {
		return fmt.Sprintf("%.1fKB", float64(s)/1024)
	}
	return fmt.Sprintf("%.2fMB", float64(s)/1024/1024)
}
