package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigotap/tigotap/link"
)

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		require.NotEmpty(t, fam.GetMetric())
		m := fam.GetMetric()[0]
		if m.GetCounter() != nil {
			return m.GetCounter().GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

type fakeSource struct {
	counters link.Counters
	modules  []ModuleSample
}

func (f fakeSource) Counters() link.Counters       { return f.counters }
func (f fakeSource) ModuleSnapshot() []ModuleSample { return f.modules }

func TestCollectorExportsLinkCounters(t *testing.T) {
	src := fakeSource{counters: link.Counters{
		FramesReceived: 10,
		CRCErrors:      2,
		Runts:          1,
		Giants:         0,
		NoiseBytes:     5,
	}}
	c := NewCollector(src)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	assert.Equal(t, float64(10), gaugeValue(t, reg, "tigotap_link_frames_received_total"))
	assert.Equal(t, float64(2), gaugeValue(t, reg, "tigotap_link_crc_errors_total"))
}

func TestCollectorExportsModuleGauges(t *testing.T) {
	src := fakeSource{modules: []ModuleSample{
		{Barcode: "ABC12345", Power: 42.5, DailyWh: 3.1, TotalWh: 900},
	}}
	c := NewCollector(src)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, fam := range families {
		found[fam.GetName()] = true
	}
	assert.True(t, found["tigotap_module_power_watts"])
	assert.True(t, found["tigotap_module_daily_energy_wh"])
	assert.True(t, found["tigotap_module_total_energy_wh"])
}

func TestCollectorWithNoModulesStillExportsCounters(t *testing.T) {
	src := fakeSource{}
	c := NewCollector(src)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
