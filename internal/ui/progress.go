package ui

import (
	"fmt"
	"io"

	"github.com/circlefin/stablecoin-evm-sub003/internal/scanner"
	"github.com/schollz/progressbar/v3"
)

// ScanBar shows scan progress one block window at a time.
type ScanBar struct {
	bar     *progressbar.ProgressBar
	added   int
	removed int
}

// NewScanBar creates a bar writing to w. The window total is learned from
// the first update.
func NewScanBar(w io.Writer) *ScanBar {
	return &ScanBar{
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("scanning"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("windows"),
			progressbar.OptionShowIts(),
			progressbar.OptionClearOnFinish(),
		),
	}
}

// Update records a persisted window. It matches scanner.WithProgress.
func (s *ScanBar) Update(p scanner.Progress) {
	if p.Window == 1 {
		s.bar.ChangeMax(p.Windows)
	}
	s.added += p.Added
	s.removed += p.Removed
	s.bar.Describe(fmt.Sprintf("blocks %d-%d  +%d -%d", p.FromBlock, p.ToBlock, s.added, s.removed))
	_ = s.bar.Set(p.Window)
}

// Finish completes and clears the bar.
func (s *ScanBar) Finish() {
	_ = s.bar.Finish()
}
