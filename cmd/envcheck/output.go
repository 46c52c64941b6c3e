package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/cgast/envcheck/pkg/check"
	"github.com/cgast/envcheck/pkg/history"
)

// outputResult writes result in the requested format.
func outputResult(w io.Writer, result any, format string) error {
	switch format {
	case "json":
		return outputJSON(w, result)
	case "yaml":
		return outputYAML(w, result)
	default:
		return outputTable(w, result)
	}
}

func outputJSON(w io.Writer, result any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputYAML(w io.Writer, result any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return err
	}
	return enc.Close()
}

func outputTable(out io.Writer, result any) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch r := result.(type) {
	case CheckResult:
		return outputCheckTable(w, r)
	case []history.Run:
		return outputRunsTable(w, r)
	case history.Run:
		return outputRunTable(w, r)
	case []history.Change:
		return outputChangesTable(w, r)
	case VersionResult:
		return outputVersionTable(w, r)
	default:
		// Fall back to JSON for unknown types
		return outputJSON(out, result)
	}
}

func status(x check.Export) string {
	switch {
	case x.Result:
		return "ok"
	case x.IsHardlyRequired:
		return "FAIL"
	default:
		return "warn"
	}
}

func found(x check.Export) string {
	if x.Unverified {
		return "(unknown)"
	}
	if x.Version == "" {
		return "-"
	}
	return x.Version
}

func writeExports(w io.Writer, list []check.Export) {
	fmt.Fprintln(w, "NAME\tREQUIRED\tFOUND\tSTATUS")
	for _, x := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", x.Name, x.Required, found(x), status(x))
	}
}

func outputCheckTable(w *tabwriter.Writer, r CheckResult) error {
	writeExports(w, r.Requirements)

	var notices []check.Export
	for _, x := range r.Requirements {
		if x.HasNotice != "" && !x.Result {
			notices = append(notices, x)
		}
	}
	if len(notices) > 0 {
		fmt.Fprintln(w, "\nNOTICES:")
		for _, x := range notices {
			fmt.Fprintf(w, "  %s:\t%s\n", x.Name, x.HasNotice)
		}
	}

	s := r.Summary
	fmt.Fprintf(w, "\nTOTAL\t%d\n", s.Total)
	fmt.Fprintf(w, "PASSED\t%d\n", s.Passed)
	fmt.Fprintf(w, "FAILED\t%d\n", s.Failed)
	fmt.Fprintf(w, "ADVISORY\t%d\n", s.Advisory)
	if s.Unverified > 0 {
		fmt.Fprintf(w, "UNVERIFIED\t%d\n", s.Unverified)
	}
	if s.Fatal {
		fmt.Fprintln(w, "STATUS\tBLOCKED")
	} else {
		fmt.Fprintln(w, "STATUS\tREADY")
	}
	if r.RunID != "" {
		fmt.Fprintf(w, "RUN\t%s\n", r.RunID)
	}
	return nil
}

func outputRunsTable(w *tabwriter.Writer, runs []history.Run) error {
	fmt.Fprintln(w, "ID\tTIMESTAMP\tTOTAL\tFAILED\tSTATUS")
	for _, run := range runs {
		s := check.Summarize(run.Results)
		st := "READY"
		if run.FatalError {
			st = "BLOCKED"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			run.ID, run.Timestamp.Format("2006-01-02 15:04:05"), s.Total, s.Failed, st)
	}
	return nil
}

func outputRunTable(w *tabwriter.Writer, run history.Run) error {
	fmt.Fprintf(w, "RUN\t%s\n", run.ID)
	fmt.Fprintf(w, "TIMESTAMP\t%s\n\n", run.Timestamp.Format("2006-01-02 15:04:05"))
	writeExports(w, run.Results)
	return nil
}

func outputChangesTable(w *tabwriter.Writer, changes []history.Change) error {
	if len(changes) == 0 {
		fmt.Fprintln(w, "No changes.")
		return nil
	}
	fmt.Fprintln(w, "NAME\tCHANGE\tBEFORE\tAFTER")
	for _, c := range changes {
		before, after := "-", "-"
		if c.Before != nil {
			before = found(*c.Before) + " (" + status(*c.Before) + ")"
		}
		if c.After != nil {
			after = found(*c.After) + " (" + status(*c.After) + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Type, before, after)
	}
	return nil
}

func outputVersionTable(w *tabwriter.Writer, r VersionResult) error {
	fmt.Fprintf(w, "VERSION\t%s\n", r.Version)
	if r.Latest != "" {
		fmt.Fprintf(w, "LATEST\t%s\n", r.Latest)
		if r.UpdateAvailable {
			fmt.Fprintln(w, "UPDATE\tavailable")
		} else {
			fmt.Fprintln(w, "UPDATE\tup to date")
		}
	}
	return nil
}
