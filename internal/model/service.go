package model

// ServiceStatus describes one service as reported by the /services endpoint.
type ServiceStatus struct {
	ID             int     `json:"id" mapstructure:"id"`
	Name           string  `json:"name" mapstructure:"name"`
	FlagsPerRound  int     `json:"flagsPerRound" mapstructure:"flagsPerRound"`
	NoisesPerRound int     `json:"noisesPerRound" mapstructure:"noisesPerRound"`
	HavocsPerRound int     `json:"havocsPerRound" mapstructure:"havocsPerRound"`
	WeightFactor   float64 `json:"weightFactor" mapstructure:"weightFactor"`
	GitHub         string  `json:"github" mapstructure:"github"`
}
