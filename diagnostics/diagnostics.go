// Package diagnostics renders a read-only snapshot of runtime state as
// Markdown (and, on request, HTML) for the "status" CLI subcommand.
package diagnostics

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// Snapshot is the data the status report is built from; runtime does not
// depend on this package, so callers gather the fields themselves (e.g. from
// runtime.Runtime's exported accessors) to avoid import cycles.
type Snapshot struct {
	NodeID        uint32
	Identity      string
	ReadyCount    int
	LiveActors    int
	LiveTimers    int
	RegisteredPaths []string
	Transports    []TransportStatus
}

// TransportStatus is one transport's connectivity for the report.
type TransportStatus struct {
	Kind      string
	PeerNode  uint32
	Connected bool
}

// Markdown renders s as a Markdown diagnostic report.
func Markdown(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# node %d (%s)\n\n", s.NodeID, s.Identity)
	fmt.Fprintf(&b, "- ready actors: %d\n", s.ReadyCount)
	fmt.Fprintf(&b, "- live actors: %d\n", s.LiveActors)
	fmt.Fprintf(&b, "- live timers: %d\n\n", s.LiveTimers)

	b.WriteString("## registered paths\n\n")
	if len(s.RegisteredPaths) == 0 {
		b.WriteString("_none_\n\n")
	} else {
		for _, p := range s.RegisteredPaths {
			fmt.Fprintf(&b, "- `%s`\n", p)
		}
		b.WriteString("\n")
	}

	b.WriteString("## transports\n\n")
	if len(s.Transports) == 0 {
		b.WriteString("_none_\n")
	} else {
		for _, t := range s.Transports {
			status := "disconnected"
			if t.Connected {
				status = "connected"
			}
			fmt.Fprintf(&b, "- %s -> node %d: %s\n", t.Kind, t.PeerNode, status)
		}
	}

	return b.String()
}

// HTML renders s as Markdown and converts it to HTML via goldmark.
func HTML(s Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(s)), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
