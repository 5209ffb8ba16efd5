// Package metrics exposes a coordinator's link counters and per-barcode
// readings as Prometheus metrics, collected on demand (pull-based)
// rather than updated eagerly on every event.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tigotap/tigotap/frame"
	"github.com/tigotap/tigotap/link"
)

// Source is anything that can produce a point-in-time snapshot of one
// gateway connection's link counters and tracked module readings.
// coordinator.Coordinator satisfies this.
type Source interface {
	Counters() link.Counters
	ModuleSnapshot() []ModuleSample
}

// ModuleSample is one barcode's reading as needed for metric export,
// decoupled from coordinator.ModuleReading so this package doesn't
// import coordinator.
type ModuleSample struct {
	Barcode     string
	GatewayID   frame.GatewayID
	Power       float64
	VoltageIn   float64
	VoltageOut  float64
	Temperature float64
	DutyCycle   float64
	RSSI        float64
	DailyWh     float64
	TotalWh     float64
}

var (
	framesReceivedDesc = prometheus.NewDesc(
		"tigotap_link_frames_received_total", "Link frames successfully reassembled.", nil, nil)
	crcErrorsDesc = prometheus.NewDesc(
		"tigotap_link_crc_errors_total", "Frames discarded for a CRC mismatch.", nil, nil)
	runtsDesc = prometheus.NewDesc(
		"tigotap_link_runts_total", "Frames discarded for being shorter than a header.", nil, nil)
	giantsDesc = prometheus.NewDesc(
		"tigotap_link_giants_total", "Frames discarded for exceeding the maximum frame size.", nil, nil)
	noiseBytesDesc = prometheus.NewDesc(
		"tigotap_link_noise_bytes_total", "Bytes discarded outside any frame delimiter.", nil, nil)

	modulePowerDesc = prometheus.NewDesc(
		"tigotap_module_power_watts", "Latest decoded output power.", []string{"barcode"}, nil)
	moduleVoltageInDesc = prometheus.NewDesc(
		"tigotap_module_voltage_in_volts", "Latest decoded input voltage.", []string{"barcode"}, nil)
	moduleVoltageOutDesc = prometheus.NewDesc(
		"tigotap_module_voltage_out_volts", "Latest decoded output voltage.", []string{"barcode"}, nil)
	moduleTemperatureDesc = prometheus.NewDesc(
		"tigotap_module_temperature_celsius", "Latest decoded temperature.", []string{"barcode"}, nil)
	moduleDutyCycleDesc = prometheus.NewDesc(
		"tigotap_module_duty_cycle_ratio", "Latest decoded converter duty cycle, 0 to 1.", []string{"barcode"}, nil)
	moduleRSSIDesc = prometheus.NewDesc(
		"tigotap_module_rssi", "Latest reported radio signal strength.", []string{"barcode"}, nil)
	moduleDailyWhDesc = prometheus.NewDesc(
		"tigotap_module_daily_energy_wh", "Energy produced since local midnight.", []string{"barcode"}, nil)
	moduleTotalWhDesc = prometheus.NewDesc(
		"tigotap_module_total_energy_wh", "Lifetime energy produced.", []string{"barcode"}, nil)
)

// Collector adapts a Source to prometheus.Collector, re-reading the
// source on every scrape instead of maintaining its own counters.
type Collector struct {
	src Source
}

// NewCollector returns a Collector pulling from src on every scrape.
func NewCollector(src Source) *Collector {
	return &Collector{src: src}
}

var _ prometheus.Collector = (*Collector)(nil)

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- framesReceivedDesc
	ch <- crcErrorsDesc
	ch <- runtsDesc
	ch <- giantsDesc
	ch <- noiseBytesDesc
	ch <- modulePowerDesc
	ch <- moduleVoltageInDesc
	ch <- moduleVoltageOutDesc
	ch <- moduleTemperatureDesc
	ch <- moduleDutyCycleDesc
	ch <- moduleRSSIDesc
	ch <- moduleDailyWhDesc
	ch <- moduleTotalWhDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counters := c.src.Counters()
	ch <- prometheus.MustNewConstMetric(framesReceivedDesc, prometheus.CounterValue, float64(counters.FramesReceived))
	ch <- prometheus.MustNewConstMetric(crcErrorsDesc, prometheus.CounterValue, float64(counters.CRCErrors))
	ch <- prometheus.MustNewConstMetric(runtsDesc, prometheus.CounterValue, float64(counters.Runts))
	ch <- prometheus.MustNewConstMetric(giantsDesc, prometheus.CounterValue, float64(counters.Giants))
	ch <- prometheus.MustNewConstMetric(noiseBytesDesc, prometheus.CounterValue, float64(counters.NoiseBytes))

	for _, m := range c.src.ModuleSnapshot() {
		ch <- prometheus.MustNewConstMetric(modulePowerDesc, prometheus.GaugeValue, m.Power, m.Barcode)
		ch <- prometheus.MustNewConstMetric(moduleVoltageInDesc, prometheus.GaugeValue, m.VoltageIn, m.Barcode)
		ch <- prometheus.MustNewConstMetric(moduleVoltageOutDesc, prometheus.GaugeValue, m.VoltageOut, m.Barcode)
		ch <- prometheus.MustNewConstMetric(moduleTemperatureDesc, prometheus.GaugeValue, m.Temperature, m.Barcode)
		ch <- prometheus.MustNewConstMetric(moduleDutyCycleDesc, prometheus.GaugeValue, m.DutyCycle, m.Barcode)
		ch <- prometheus.MustNewConstMetric(moduleRSSIDesc, prometheus.GaugeValue, m.RSSI, m.Barcode)
		ch <- prometheus.MustNewConstMetric(moduleDailyWhDesc, prometheus.GaugeValue, m.DailyWh, m.Barcode)
		ch <- prometheus.MustNewConstMetric(moduleTotalWhDesc, prometheus.GaugeValue, m.TotalWh, m.Barcode)
	}
}
