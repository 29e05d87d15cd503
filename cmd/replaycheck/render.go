package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/streamops/replaycheck-worker/internal/frame"
	"github.com/streamops/replaycheck-worker/internal/ocr"
	"github.com/streamops/replaycheck-worker/internal/worker"
)

func renderOutcome(w io.Writer, outcome *worker.BatchOutcome, ocrEnabled bool) {
	fmt.Fprintf(w, "batch %s\nsession %s\n\n", outcome.BatchID, outcome.SessionDir)

	if len(outcome.Results) > 0 {
		fmt.Fprintln(w, renderFrames(outcome.Results, ocrEnabled))
		fmt.Fprintln(w)
	}

	s := outcome.Summary
	rows := [][]string{
		{"Frames requested", strconv.Itoa(s.FramesRequested)},
		{"Frames processed", strconv.Itoa(s.FramesProcessed)},
		{"Decode failures", strconv.Itoa(s.DecodeFailures)},
		{"Frame failures", strconv.Itoa(s.FrameFailures)},
		{"OCR failures", strconv.Itoa(s.OCRFailures)},
		{"Timestamp frames", strconv.Itoa(s.TimestampFrames)},
		{"Replay frames", strconv.Itoa(s.ReplayFrames)},
		{"Avg OCR time", fmt.Sprintf("%dms", s.AvgOCRMs)},
	}
	fmt.Fprintln(w, renderTable([]string{"Summary", ""}, rows, []columnAlignment{alignLeft, alignRight}))

	if s.Partial() {
		fmt.Fprintln(w, "note: the stream ended before the requested frame count was reached")
	}
}

func renderFrames(results []*frame.AnalysisResult, ocrEnabled bool) string {
	headers := []string{"#", "Clock", "Replay", "OCR", "Text"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.Itoa(r.FrameIndex),
			yesNo(r.HasTimestamp),
			yesNo(r.HasReplayMarker),
			ocrCell(r, ocrEnabled),
			strings.Join(ocr.Texts(r.Lines), " | "),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft})
}

func ocrCell(r *frame.AnalysisResult, ocrEnabled bool) string {
	switch {
	case !ocrEnabled:
		return "off"
	case r.OCRFailed():
		return "failed"
	default:
		return fmt.Sprintf("%dms", r.OCRDurationMs)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
