package pipeline

import "github.com/jondoveston/vmtop/internal/model"

// Transform projects a raw series onto the three chart series. Every output
// series has one point per raw sample, in the same order, and carries the
// sample's measuretime unchanged.
func Transform(raw model.RawSeries) model.ChartBundle {
	b := model.ChartBundle{
		CPUData: make([]model.PercentPoint, len(raw)),
		RAMData: make([]model.PercentPoint, len(raw)),
		NetData: make([]model.NetPoint, len(raw)),
	}
	for i, s := range raw {
		b.CPUData[i] = model.PercentPoint{Date: s.MeasureTime, Percentage: s.CPUUsage}
		b.RAMData[i] = model.PercentPoint{Date: s.MeasureTime, Percentage: s.RAMUsage}
		b.NetData[i] = model.NetPoint{Date: s.MeasureTime, Rx: s.NetRx, Tx: s.NetTx}
	}
	return b
}
