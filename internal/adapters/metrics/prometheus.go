// Package metrics exposes sender activity as Prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/pikarelay/pkg/relay"
)

const namespace = "pikarelay"

// QueueSource is the part of a sender the queue gauges read from.
type QueueSource interface {
	QueueSize() int
	Elements() int64
	ShouldExit() bool
}

// Collector implements relay.EventHandler by updating Prometheus metrics.
// All metrics carry a constant "sender" label.
type Collector struct {
	reg    prometheus.Registerer
	labels prometheus.Labels

	sent            prometheus.Counter
	sentBytes       prometheus.Counter
	sendFailures    prometheus.Counter
	connects        prometheus.Counter
	connectFailures prometheus.Counter
	fatal           prometheus.Gauge
	state           prometheus.Gauge
	latency         prometheus.Histogram
}

var _ relay.EventHandler = (*Collector)(nil)

// NewCollector creates the sender metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer, senderID int) (*Collector, error) {
	labels := prometheus.Labels{"sender": strconv.Itoa(senderID)}
	c := &Collector{
		reg:    reg,
		labels: labels,
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "commands_sent_total",
			Help:        "Commands the store replied to, error replies included.",
			ConstLabels: labels,
		}),
		sentBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sent_bytes_total",
			Help:        "Bytes of command frames delivered.",
			ConstLabels: labels,
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "send_failures_total",
			Help:        "Sends that failed and put the command back in the queue.",
			ConstLabels: labels,
		}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "connects_total",
			Help:        "Sessions established and authenticated.",
			ConstLabels: labels,
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "connect_failures_total",
			Help:        "Failed connect or handshake attempts.",
			ConstLabels: labels,
		}),
		fatal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "fatal",
			Help:        "1 once the sender gave up on a misconfigured destination.",
			ConstLabels: labels,
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "state",
			Help:        "Current lifecycle state (0 idle, 1 connecting, 2 sending, 3 reconnecting, 4 draining, 5 stopped).",
			ConstLabels: labels,
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "send_latency_seconds",
			Help:        "Time from writing a command to reading its reply.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
	}

	for _, m := range []prometheus.Collector{
		c.sent, c.sentBytes, c.sendFailures, c.connects,
		c.connectFailures, c.fatal, c.state, c.latency,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WatchQueue registers gauges that read the queue of src on every scrape.
// It is separate from NewCollector because the sender needs the collector
// before it exists.
func (c *Collector) WatchQueue(src QueueSource) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "queue_length",
			Help:        "Commands waiting to be sent.",
			ConstLabels: c.labels,
		}, func() float64 { return float64(src.QueueSize()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "elements",
			Help:        "Commands dequeued minus commands put back after a failure.",
			ConstLabels: c.labels,
		}, func() float64 { return float64(src.Elements()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "should_exit",
			Help:        "1 once a stop was requested or a fatal error occurred.",
			ConstLabels: c.labels,
		}, func() float64 {
			if src.ShouldExit() {
				return 1
			}
			return 0
		}),
	}
	for _, g := range gauges {
		if err := c.reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) OnStateChange(e relay.StateChangeEvent) {
	c.state.Set(float64(e.Current))
}

func (c *Collector) OnConnect(relay.ConnectEvent) {
	c.connects.Inc()
}

func (c *Collector) OnConnectError(e relay.ConnectErrorEvent) {
	c.connectFailures.Inc()
	if e.Fatal {
		c.fatal.Set(1)
	}
}

func (c *Collector) OnSendSuccess(e relay.SendSuccessEvent) {
	c.sent.Inc()
	c.sentBytes.Add(float64(e.Bytes))
	c.latency.Observe(e.Duration.Seconds())
}

func (c *Collector) OnSendError(relay.SendErrorEvent) {
	c.sendFailures.Inc()
}
