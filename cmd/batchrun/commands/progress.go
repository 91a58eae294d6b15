package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"batchrun/pkg/core"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// progressBar renders ProgressEvents forwarded from the orchestrator's
// OnProgress callback as a single refreshing line on a terminal, or one
// line per event otherwise.
type progressBar struct {
	writer io.Writer
	isTTY  bool
}

func newProgressBar(writer io.Writer) *progressBar {
	return &progressBar{writer: writer, isTTY: isTerminal(writer)}
}

func (p *progressBar) Update(ev core.ProgressEvent) {
	switch ev.Kind {
	case core.EventRetry:
		fmt.Fprintf(p.writer, "\nretry #%d: %s\n", ev.RetryCount, ev.CurrentError)
		return
	case core.EventStarted, core.EventCompleted:
		// fall through to the bar render so start/completion still show a row
	}

	width := 30
	if ev.TotalRows <= 0 {
		fmt.Fprintf(p.writer, "\rprocessed %d rows (%d ok, %d failed)", ev.ProcessedRows, ev.SuccessfulRows, ev.FailedRows)
		return
	}

	ratio := ev.PercentComplete / 100
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	bar := strings.Repeat("=", filled) + strings.Repeat(".", width-filled)

	barStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	eta := "?"
	if ev.EstimatedRemainingMs != nil {
		eta = time.Duration(*ev.EstimatedRemainingMs * int64(time.Millisecond)).Truncate(time.Second).String()
	}
	line := fmt.Sprintf("[%s] %3.0f%% (%d/%d) ok=%d failed=%d eta=%s",
		barStyle.Render(bar), ev.PercentComplete, ev.ProcessedRows, ev.TotalRows, ev.SuccessfulRows, ev.FailedRows, eta)

	if p.isTTY {
		fmt.Fprintf(p.writer, "\r%s", line)
	} else {
		fmt.Fprintf(p.writer, "%s\n", line)
	}
	if ev.Kind == core.EventCompleted {
		fmt.Fprintln(p.writer)
	}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func progressWriter(cmd *cobra.Command) io.Writer {
	stderr := cmd.ErrOrStderr()
	stdout := cmd.OutOrStdout()
	if isTerminal(stderr) {
		return stderr
	}
	if isTerminal(stdout) {
		return stdout
	}
	return stderr
}
