package exporter

import (
	"strconv"

	"spendtrend/internal/panel"
)

// Provenance columns of the corrected panel export
const (
	ColFTEOriginal  = "fte_original"
	ColFTECorrected = "fte_corrected"
)

// PanelHeaders returns the export header for t: keys, the denominator with
// its provenance, text columns, then every value column in name order.
func PanelHeaders(t *panel.Table) []string {
	headers := []string{panel.ColEntityID, panel.ColYear, panel.ColCategory, panel.ColFTE, ColFTEOriginal, ColFTECorrected}
	headers = append(headers, t.LabelColumns()...)
	return append(headers, t.Columns()...)
}

// PanelRecord renders one row in PanelHeaders order
func PanelRecord(r panel.Row, labels, columns []string) []string {
	original := r.FTE
	if r.FTECorrected {
		original = r.OriginalFTE
	}
	rec := []string{
		r.EntityID,
		strconv.Itoa(r.Year),
		string(r.Category),
		formatValue(r.FTE),
		formatValue(original),
		formatBool(r.FTECorrected),
	}
	for _, l := range labels {
		rec = append(rec, r.Labels[l])
	}
	for _, c := range columns {
		rec = append(rec, formatValue(r.Get(c)))
	}
	return rec
}

// WritePanel streams the corrected panel to filePath
func (w *CSVWriter) WritePanel(filePath string, t *panel.Table) error {
	labels, columns := t.LabelColumns(), t.Columns()
	sw, err := w.CreateStreamWriter(filePath, PanelHeaders(t))
	if err != nil {
		return err
	}
	for _, r := range t.Rows() {
		if err := sw.WriteRecord(PanelRecord(r, labels, columns)); err != nil {
			sw.file.Close()
			return err
		}
	}
	w.logger.Info("panel exported", "file_path", filePath, "rows", sw.Count())
	return sw.Close()
}
