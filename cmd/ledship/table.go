package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/bft-labs/ledship/internal/domain"
	"github.com/bft-labs/ledship/pkg/protocol"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
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

// deviceRows lists one row per mapping, with the address each window is
// sent to.
func deviceRows(set domain.DeviceSet) [][]string {
	var rows [][]string
	for _, d := range set.All() {
		leds := ""
		if d.Protocol == domain.ProtocolBinary {
			leds = strconv.Itoa(d.NumLEDs)
		}
		for _, w := range d.Windows() {
			addr := d.ID
			if d.Protocol == domain.ProtocolText {
				addr = protocol.Topic(d.ID, w.Origin)
			}
			for _, m := range w.Table.Mappings() {
				dir := "forward"
				if m.Reverse {
					dir = "reverse"
				}
				rows = append(rows, []string{
					d.Protocol.String(),
					addr,
					leds,
					fmt.Sprintf("%d-%d", m.SourceStart, m.SourceEnd()-1),
					fmt.Sprintf("%d-%d", m.TargetStart, m.TargetEnd()-1),
					dir,
				})
			}
		}
	}
	return rows
}

func renderDevices(set domain.DeviceSet) string {
	return renderTable(
		[]string{"Protocol", "Address", "LEDs", "Source", "Target", "Direction"},
		deviceRows(set),
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

func statsRows(s domain.Stats, now time.Time) [][]string {
	rows := [][]string{
		{"Devices", strconv.Itoa(s.Devices)},
		{"Frames received", strconv.FormatUint(s.FramesReceived, 10)},
		{"Frames dispatched", strconv.FormatUint(s.FramesDispatched, 10)},
		{"Frames unchanged", strconv.FormatUint(s.FramesUnchanged, 10)},
		{"Packets sent", strconv.FormatUint(s.PacketsSent, 10)},
		{"Capacity warnings", strconv.FormatUint(s.CapacityWarnings, 10)},
		{"Device errors", strconv.FormatUint(s.DeviceErrors, 10)},
		{"Transport errors", strconv.FormatUint(s.TransportErrors, 10)},
		{"Started", formatTime(s.StartedAt, now)},
		{"Last frame", formatTime(s.LastFrameAt, now)},
		{"Saved", formatTime(s.SavedAt, now)},
	}
	return rows
}

func formatTime(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	ago := now.Sub(t).Truncate(time.Second)
	return fmt.Sprintf("%s (%s ago)", t.Local().Format(time.RFC3339), ago)
}

func renderStats(s domain.Stats, now time.Time) string {
	return renderTable([]string{"Counter", "Value"}, statsRows(s, now), []columnAlignment{alignLeft, alignRight})
}
