package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/violation-lookup/internal/model"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return eris.Errorf("unknown output format %q (want table, json or yaml)", f)
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	}
	return validFormat(format)
}

// writeOutcomes renders lookup outcomes. The table has one row per record
// plus one row for each target that failed or had no violations.
func writeOutcomes(w io.Writer, format string, outcomes []model.LookupOutcome) error {
	if format != formatTable {
		return encode(w, format, outcomes)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Plate", "Type", "Status", "Violation", "Time", "Location", "Resolving unit"})
	for _, o := range outcomes {
		plate := o.Target.Normalized()
		if o.Cached {
			plate += " (cached)"
		}
		switch {
		case !o.Success:
			t.AppendRow(table.Row{plate, o.Target.VehicleClass, "ERROR", o.Error, "", "", ""})
		case len(o.Records) == 0:
			t.AppendRow(table.Row{plate, o.Target.VehicleClass, "no violations", "", "", "", ""})
		default:
			for _, r := range o.Records {
				t.AppendRow(recordRow(plate, string(o.Target.VehicleClass), r))
			}
		}
	}
	ok, failed := model.Summary(outcomes)
	t.AppendFooter(table.Row{"", "", "", "", "", "total", summary(ok, failed)})
	t.Style().Format.Footer = text.FormatDefault
	t.Render()
	return nil
}

// writeRecords renders parsed records without lookup metadata.
func writeRecords(w io.Writer, format string, records []model.ViolationRecord) error {
	if format != formatTable {
		if records == nil {
			records = []model.ViolationRecord{}
		}
		return encode(w, format, records)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Plate", "Type", "Status", "Violation", "Time", "Location", "Resolving unit"})
	for _, r := range records {
		t.AppendRow(recordRow(r.PlateNumber, r.VehicleInfo.VehicleType, r))
	}
	t.Render()
	return nil
}

func recordRow(plate, vehicle string, r model.ViolationRecord) table.Row {
	return table.Row{
		plate,
		vehicle,
		r.Status,
		r.ViolationDetail.ViolationType,
		r.ViolationDetail.Time,
		r.ViolationDetail.Location,
		r.ProcessingUnit.ResolvingUnit,
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func summary(ok, failed int) string {
	return fmt.Sprintf("%d ok, %d failed", ok, failed)
}
