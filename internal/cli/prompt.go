package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/linuxmatters/levelset/internal/processor"
)

// GainPrompter asks for a gain per file on an interactive terminal
type GainPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewGainPrompter reads answers from in and writes prompts to out
func NewGainPrompter(in io.Reader, out io.Writer) *GainPrompter {
	return &GainPrompter{in: bufio.NewReader(in), out: out}
}

// Intro explains the accepted input forms
func (p *GainPrompter) Intro() {
	fmt.Fprintln(p.out, "Enter gain for each file. Use dB values (e.g., '+3', '-2') or target LUFS (e.g., '-14 LUFS').")
	fmt.Fprintln(p.out, "Press Enter to skip (no change).")
	fmt.Fprintln(p.out)
}

// Ask prompts until the answer parses. An empty answer means no change.
// End of input before any answer returns io.EOF.
func (p *GainPrompter) Ask(name string, currentLUFS float64) (processor.GainSpec, error) {
	for {
		fmt.Fprintf(p.out, "%s (current: %.1f LUFS) [0]: ", FileStyle.Render(name), currentLUFS)

		line, err := p.in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			fmt.Fprintln(p.out)
			return processor.GainSpec{}, err
		}

		spec, perr := processor.ParseGainInput(strings.TrimSpace(line))
		if perr == nil {
			return spec, nil
		}
		fmt.Fprintln(p.out, ErrorStyle.Render(perr.Error()))
		if err != nil {
			return processor.GainSpec{}, err
		}
	}
}
