package postgres

import (
	"fmt"

	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRIC COLUMN MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// metricColumns lists the metric columns in the order they appear in every
// stats table. Scans and inserts rely on this order being stable.
var metricColumns = []struct {
	Name   stats.MetricName
	Column string
}{
	{stats.MetricEnergyHarvested, "energy_harvested"},
	{stats.MetricEnergyConstruction, "energy_construction"},
	{stats.MetricEnergyCreeps, "energy_creeps"},
	{stats.MetricEnergyControl, "energy_control"},
	{stats.MetricCreepsProduced, "creeps_produced"},
	{stats.MetricCreepsLost, "creeps_lost"},
	{stats.MetricPowerProcessed, "power_processed"},
}

// metricColumnList is the comma-separated column list, built once at init.
var metricColumnList = func() string {
	s := ""
	for i, c := range metricColumns {
		if i > 0 {
			s += ", "
		}
		s += c.Column
	}
	return s
}()

// metricPlaceholders returns "$first, $first+1, ..." covering one argument
// per metric column.
func metricPlaceholders(first int) string {
	s := ""
	for i := range metricColumns {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("$%d", first+i)
	}
	return s
}

// metricSumList is "COALESCE(SUM(col), 0) AS col, ..." for window sums.
var metricSumList = func() string {
	s := ""
	for i, c := range metricColumns {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("COALESCE(SUM(%s), 0)", c.Column)
	}
	return s
}()

// metricColumn resolves a metric name to its column. The metric set is
// closed, so an unknown name is a programming error at the call site.
func metricColumn(name stats.MetricName) (string, error) {
	for _, c := range metricColumns {
		if c.Name == name {
			return c.Column, nil
		}
	}
	return "", fmt.Errorf("no column for metric %q", name)
}

// metricValues extracts values in column order for use as query arguments.
func metricValues(m stats.Metrics) []any {
	out := make([]any, len(metricColumns))
	for i, c := range metricColumns {
		out[i] = m[c.Name]
	}
	return out
}

// scanTargets returns scan destinations for the metric columns; after the
// scan, collectMetrics converts them into a Metrics map.
func scanTargets() []int64 {
	return make([]int64, len(metricColumns))
}

// collectMetrics builds a Metrics map from values scanned in column order.
// Zero values are kept: a stored zero is still a stored value.
func collectMetrics(vals []int64) stats.Metrics {
	m := make(stats.Metrics, len(metricColumns))
	for i, c := range metricColumns {
		m[c.Name] = vals[i]
	}
	return m
}
