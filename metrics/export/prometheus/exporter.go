package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/metrics/export/internaldefs"
)

// Source is what the exporter reads on every scrape. *authstate.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() authstate.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in the Prometheus text exposition format.
type Exporter struct {
	source Source
}

// New returns an exporter reading from source.
func New(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the current metrics.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_ = e.Write(w)
	})
}

// Render returns the exposition as a string. It is empty when metrics are
// disabled and nothing was dropped.
func (e *Exporter) Render() string {
	var b strings.Builder
	_ = e.Write(&b)
	return b.String()
}

// Write streams the exposition to w.
func (e *Exporter) Write(w io.Writer) error {
	if e == nil || e.source == nil {
		return nil
	}
	snap := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return nil
	}

	bw := bufio.NewWriter(w)
	for _, c := range internaldefs.Counters {
		counter(bw, c.Name, c.Help, snap.Counters[c.ID])
	}
	if raw, ok := snap.Histograms[authstate.MetricValidateLatency]; ok {
		histogram(bw, internaldefs.LatencyName, internaldefs.LatencyHelp, internaldefs.Cumulative(raw))
	}
	counter(bw, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, dropped)
	return bw.Flush()
}

func counter(w io.Writer, name, help string, v uint64) {
	header(w, name, help, "counter")
	fmt.Fprintf(w, "%s %d\n", name, v)
}

func histogram(w io.Writer, name, help string, cumulative [len(internaldefs.Buckets)]uint64) {
	header(w, name, help, "histogram")
	for i, b := range internaldefs.Buckets {
		fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", name, b.LE, cumulative[i])
	}
	fmt.Fprintf(w, "%s_count %d\n", name, cumulative[len(cumulative)-1])
	// The engine keeps bucket counts only.
	fmt.Fprintf(w, "%s_sum 0\n", name)
}

func header(w io.Writer, name, help, kind string) {
	help = strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}
