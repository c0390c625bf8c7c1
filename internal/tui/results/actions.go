package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// planExport is the JSON form of a row layout.
type planExport struct {
	StmtID     string         `json:"stmt_id"`
	ConnID     string         `json:"conn_id"`
	SQL        string         `json:"sql"`
	Kind       string         `json:"kind"`
	BufferSize int            `json:"buffer_size"`
	Columns    []columnExport `json:"columns"`
}

type columnExport struct {
	Index  int    `json:"index"`
	Type   string `json:"type"`
	Length int    `json:"length"`
	Offset int    `json:"offset"`
	Size   int    `json:"size"`
}

func (m *Model) doCopyID() {
	if m.info == nil {
		m.statusMessage = "Nothing to copy"
		return
	}
	if err := clipboard.WriteAll(m.info.StmtID); err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.statusMessage = "Copied: " + m.info.StmtID
}

func (m *Model) doCopyPlanCSV() {
	if m.info == nil {
		m.statusMessage = "Nothing to copy"
		return
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(headers)
	_ = w.WriteAll(m.rows())
	if err := clipboard.WriteAll(b.String()); err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.statusMessage = "Copied layout as CSV"
}

func (m Model) exportJSONCmd() tea.Cmd {
	if m.info == nil {
		return nil
	}
	data := exportOf(*m.info)
	return func() tea.Msg {
		filename := fmt.Sprintf("asyncprep_%s_%s.json", data.StmtID, time.Now().Format("20060102_150405"))
		raw, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		if err := os.WriteFile(filename, raw, 0o644); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: "Exported layout to " + filename}
	}
}

func exportOf(info Info) planExport {
	out := planExport{
		StmtID:     info.StmtID,
		ConnID:     info.ConnID,
		SQL:        info.SQL,
		Kind:       info.Kind.String(),
		BufferSize: info.Plan.Size,
		Columns:    make([]columnExport, len(info.Plan.Columns)),
	}
	for i, c := range info.Plan.Columns {
		out.Columns[i] = columnExport{
			Index:  c.Index,
			Type:   c.Type.String(),
			Length: c.Length,
			Offset: c.Offset,
			Size:   c.Size,
		}
	}
	return out
}
