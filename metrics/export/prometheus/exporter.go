package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	saraAuth "github.com/MrEthical07/saraAuth"
	"github.com/MrEthical07/saraAuth/metrics/export/internaldefs"
)

// Source is what the exporter renders. [*saraAuth.Engine] satisfies it.
type Source interface {
	MetricsSnapshot() saraAuth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in the Prometheus text exposition format.
type Exporter struct {
	source Source
}

func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves [Exporter.Render]. Mount it on any router; nothing is
// registered globally.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current exposition. It is empty when metrics are
// disabled on the engine and no audit events were dropped.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		writeCounter(&b, def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		if _, ok := snap.Histograms[def.ID]; !ok {
			continue
		}
		writeHistogram(&b, def.Name, def.Help, internaldefs.Cumulative(snap.Histograms[def.ID]))
	}
	writeCounter(&b, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, dropped)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	writeHeader(b, name, help, "counter")
	b.WriteString(name + " " + strconv.FormatUint(value, 10) + "\n")
}

func writeHistogram(b *strings.Builder, name, help string, cum [internaldefs.BucketCount]uint64) {
	writeHeader(b, name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name + `_bucket{le="` + le + `"} ` + strconv.FormatUint(cum[i], 10) + "\n")
	}
	b.WriteString(name + "_count " + strconv.FormatUint(cum[len(cum)-1], 10) + "\n")
	// Bucketed counters carry no sum.
	b.WriteString(name + "_sum 0\n")
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
