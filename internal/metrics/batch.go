package metrics

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Batch holds the counters both export binaries report against.
type Batch struct {
	ImagesProcessed     prometheus.Counter
	AnnotationsExported prometheus.Counter
	AnnotationsSkipped  *prometheus.CounterVec
	MasksWritten        prometheus.Counter
	ItemErrors          *prometheus.CounterVec
}

func NewBatch(reg prometheus.Registerer) *Batch {
	b := &Batch{
		ImagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qpexport_images_processed_total",
			Help: "Project image entries walked.",
		}),
		AnnotationsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qpexport_annotations_exported_total",
			Help: "Annotations emitted to the output feature collection.",
		}),
		AnnotationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qpexport_annotations_skipped_total",
			Help: "Annotations left out of the output.",
		}, []string{"reason"}),
		MasksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qpexport_masks_written_total",
			Help: "Mask/image PNG pairs written.",
		}),
		ItemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qpexport_item_errors_total",
			Help: "Per-item failures that were logged and skipped.",
		}, []string{"stage"}),
	}
	reg.MustRegister(
		b.ImagesProcessed,
		b.AnnotationsExported,
		b.AnnotationsSkipped,
		b.MasksWritten,
		b.ItemErrors,
	)
	return b
}

// LogSummary gathers the qpexport_* counters from the registry and logs their
// final values, so a run always ends with its totals even when the metrics
// endpoint was never enabled.
func (p *Provider) LogSummary(log *slog.Logger) {
	fams, err := p.reg.Gather()
	if err != nil {
		log.Error("gather metrics summary", "err", err)
		return
	}

	attrs := make([]any, 0, 16)
	for _, mf := range fams {
		name := mf.GetName()
		if !strings.HasPrefix(name, "qpexport_") || mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		keys := make([]string, 0, len(mf.GetMetric()))
		vals := map[string]float64{}
		for _, m := range mf.GetMetric() {
			k := name
			for _, lp := range m.GetLabel() {
				k += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			keys = append(keys, k)
			vals[k] = m.GetCounter().GetValue()
		}
		sort.Strings(keys)
		for _, k := range keys {
			attrs = append(attrs, k, vals[k])
		}
	}
	log.Info("run summary", attrs...)
}
