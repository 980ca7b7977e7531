package model

// RawSample is one measurement record as reported by the backend.
type RawSample struct {
	MeasureTime string  `json:"measuretime" mapstructure:"measuretime"`
	CPUUsage    float64 `json:"cpuusage" mapstructure:"cpuusage"`
	RAMUsage    float64 `json:"ramusage" mapstructure:"ramusage"`
	NetRx       float64 `json:"netrx" mapstructure:"netrx"`
	NetTx       float64 `json:"nettx" mapstructure:"nettx"`
}

// RawSeries is the sample sequence for one entity, in backend order.
type RawSeries []RawSample

// PercentPoint is a chart point for percentage series (CPU, RAM).
type PercentPoint struct {
	Date       string  `json:"date"`
	Percentage float64 `json:"percentage"`
}

// NetPoint is a chart point for the network series.
type NetPoint struct {
	Date string  `json:"date"`
	Rx   float64 `json:"rx"`
	Tx   float64 `json:"tx"`
}

// ChartBundle holds the normalized series derived for one entity.
type ChartBundle struct {
	CPUData []PercentPoint `json:"cpuData"`
	RAMData []PercentPoint `json:"ramData"`
	NetData []NetPoint     `json:"netData"`
}

// EmptyBundle returns a bundle with non-nil, zero-length series.
func EmptyBundle() ChartBundle {
	return ChartBundle{
		CPUData: []PercentPoint{},
		RAMData: []PercentPoint{},
		NetData: []NetPoint{},
	}
}

// Len returns the number of points in the bundle. All series share it.
func (b ChartBundle) Len() int {
	return len(b.CPUData)
}

// Snapshot maps entity ids to their chart bundles for one fetch cycle.
type Snapshot map[string]ChartBundle

// Get returns the bundle for id, or an empty bundle if the id is unknown.
func (s Snapshot) Get(id string) (ChartBundle, bool) {
	b, ok := s[id]
	if !ok {
		return EmptyBundle(), false
	}
	return b, true
}
