package ingestion_engine

import (
	"fmt"

	"github.com/markdave123-py/quickread/internal/core"
	"github.com/markdave123-py/quickread/internal/models"
)

// ExtractPage pulls and normalizes the text of one page. It never fails:
// parser errors and panics produce a record with Status failed and no text,
// so a single bad page cannot end the session.
func ExtractPage(acc core.PageAccessor, index, total int) (rec models.PageRecord) {
	rec = models.PageRecord{PageIndex: index, TotalPages: total}

	defer func() {
		if r := recover(); r != nil {
			rec.RawText, rec.Text = "", ""
			rec.Status = models.PageStatusFailed
			rec.Err = fmt.Errorf("page %d: parser panic: %v", index, r)
		}
	}()

	raw, err := acc.PageText(index)
	if err != nil {
		rec.Status = models.PageStatusFailed
		rec.Err = fmt.Errorf("page %d: %w", index, err)
		return rec
	}

	rec.RawText = raw
	rec.Text = Normalize(raw)
	if rec.Text == "" {
		rec.Status = models.PageStatusEmpty
	} else {
		rec.Status = models.PageStatusOK
	}
	return rec
}

// pageError describes a failed page for logs.
func pageError(rec models.PageRecord) string {
	return fmt.Sprintf("page %d/%d failed", rec.PageIndex, rec.TotalPages)
}
