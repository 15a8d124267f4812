package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/janpfeifer/criteria/criterion"
	"github.com/janpfeifer/criteria/internal/generics"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	bestStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	divergedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// history of (epoch, eval loss) pairs, for the final summary.
var history []generics.Pair[int, criterion.EpochValue]

func printHeader() {
	title := headerStyle.Render("sin(x) regression -- epoch criteria")
	terminalWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
	indent := 0
	if err == nil {
		indent = max((terminalWidth-lipgloss.Width(title))/2, 0)
	}
	fmt.Printf("%s%s\n", strings.Repeat(" ", indent), title)
}

func reportEpoch(epoch int, loss, mae, eval, cumulative criterion.EpochValue, isBest bool) {
	history = append(history, generics.Pair[int, criterion.EpochValue]{A: epoch, B: eval})
	line := fmt.Sprintf("epoch %3d: train loss %-22s mae %.5f   eval loss %-22s cumulative %.5f",
		epoch, loss, mae.Average(), eval, cumulative.Average())
	if isBest {
		line += bestStyle.Render(" (best)")
	}
	fmt.Println(line)
}

func reportDiverged(epoch int) {
	fmt.Println(divergedStyle.Render(
		fmt.Sprintf("training diverged at epoch %d: loss is NaN", epoch)))
}

func reportFinal(bestEpoch int, best criterion.EpochValue) {
	if bestEpoch < 0 || best.IsInfinity() {
		fmt.Println("no epochs completed")
		return
	}
	fmt.Printf("\n%d epochs run, best eval loss %s at epoch %d\n",
		len(history), bestStyle.Render(best.String()), bestEpoch)
}
