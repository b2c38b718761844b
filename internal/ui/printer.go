package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muurk/oscquery/pkg/oscquery"
)

// Printer writes styled output for the non-interactive commands and for the
// monitor when stdout is not a terminal. It is safe for concurrent use;
// every Print call reaches the writer as one write.
type Printer struct {
	mu    sync.Mutex
	out   io.Writer
	width int
	now   func() time.Time
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
		now:   time.Now,
	}
}

// Width returns the terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	p.print(func() string { return content })
}

// print renders and writes under the lock so concurrent calls never
// interleave
func (p *Printer) print(render func() string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, render())
}

// PrintHeader prints a header box
func (p *Printer) PrintHeader(title, command string, params ...Param) {
	p.print(func() string {
		return NewHeader(title, command, params...).SetWidth(p.width).Render()
	})
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details ...Param) {
	p.print(func() string {
		return NewSuccessResult(title, details...).SetWidth(p.width).Render()
	})
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting ...string) {
	p.print(func() string {
		return NewFailureResult(title, err, troubleshooting...).SetWidth(p.width).Render()
	})
}

// PrintPeerFound prints one line for a negotiated peer
func (p *Printer) PrintPeerFound(peer oscquery.PeerFound) {
	p.print(func() string {
		return fmt.Sprintf("%s %s %s http=%s osc=%s",
			MutedStyle.Render(p.stamp()),
			PeerConnectedStyle.Render(PeerMarker+" peer"),
			peer.Instance, peer.HTTP, peer.OSC)
	})
}

// PrintSnapshot prints a summary line followed by one line per parameter
func (p *Printer) PrintSnapshot(s *oscquery.Snapshot) {
	p.print(func() string {
		avatar := s.AvatarID
		if avatar == "" {
			avatar = "unknown avatar"
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s %s %s (%d parameters)",
			MutedStyle.Render(p.stamp()),
			SectionTitleStyle.UnsetPaddingLeft().Render("parameters"),
			avatar, len(s.Parameters))
		for _, name := range s.Names() {
			b.WriteString("\n")
			b.WriteString(FormatParameter(name, s.Parameters[name]))
		}
		return b.String()
	})
}

// PrintRefreshError prints a failed refresh
func (p *Printer) PrintRefreshError(err error) {
	p.print(func() string {
		return fmt.Sprintf("%s %s", MutedStyle.Render(p.stamp()), ErrorMessageStyle.Render("refresh failed: "+err.Error()))
	})
}

func (p *Printer) stamp() string {
	return p.now().Format("15:04:05")
}

// FormatParameter renders one parameter line with the parameters prefix
// trimmed
func FormatParameter(name string, value any) string {
	short := strings.TrimPrefix(name, oscquery.ParametersPath+"/")
	return ParameterNameStyle.Render(short) + " " + ParameterValueStyle.Render(FormatValue(value))
}

// FormatValue renders a parameter value; nil means the peer sent no value
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "-"
	case float64:
		return fmt.Sprintf("%.3g", v)
	default:
		return fmt.Sprint(v)
	}
}
