package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/metrics/export/internaldefs"
)

// Source is satisfied by *marketAuth.Engine.
type Source interface {
	MetricsSnapshot() marketAuth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in Prometheus text exposition format.
type Exporter struct {
	source Source
}

func New(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render output.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns an empty string when metrics are disabled.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, m := range internaldefs.Counters {
		writeCounter(&b, m.Name, m.Help, snapshot.Counters[m.ID])
	}
	if raw, ok := snapshot.Histograms[internaldefs.LoginLatency.ID]; ok {
		writeHistogram(&b, internaldefs.LoginLatency, internaldefs.Cumulative(raw))
	}
	writeCounter(&b, internaldefs.AuditDroppedName, "Audit events dropped by a full dispatcher queue.", dropped)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	help = strings.ReplaceAll(help, `\`, `\\`)
	help = strings.ReplaceAll(help, "\n", `\n`)
	b.WriteString("# HELP " + name + " " + help + "\n")
	b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	writeHeader(b, name, help, "counter")
	b.WriteString(name + " " + strconv.FormatUint(value, 10) + "\n")
}

func writeHistogram(b *strings.Builder, m internaldefs.Metric, cumulative [8]uint64) {
	writeHeader(b, m.Name, m.Help, "histogram")
	for i, le := range internaldefs.Bounds {
		b.WriteString(m.Name + `_bucket{le="` + le + `"} ` + strconv.FormatUint(cumulative[i], 10) + "\n")
	}
	b.WriteString(m.Name + "_count " + strconv.FormatUint(cumulative[len(cumulative)-1], 10) + "\n")
	// Snapshots carry bucket counts only.
	b.WriteString(m.Name + "_sum 0\n")
}
