package statuspage

import "time"

// Record is one complete snapshot of the router's connection statistics.
// Produced fresh each cycle and never mutated afterwards.
type Record struct {
	TotalTX int64
	TotalRX int64

	FirmwareUpdated time.Time
	RebootedAt      time.Time

	DataRateTX int64
	DataRateRX int64

	MaxDataRateTX int64
	MaxDataRateRX int64

	NoiseMarginTX float64
	NoiseMarginRX float64

	LineAttenuationTX float64
	LineAttenuationRX float64

	SignalAttenuationTX float64
	SignalAttenuationRX float64
}

// Fields returns the record as time-series field values, keyed by the
// names the measurement has always used. Timestamps are Unix seconds.
func (r *Record) Fields() map[string]interface{} {
	return map[string]interface{}{
		"total_tx": r.TotalTX,
		"total_rx": r.TotalRX,

		"firmware_update_datetime": r.FirmwareUpdated.Unix(),
		"reboot_datetime":          r.RebootedAt.Unix(),

		"data_rate_tx": r.DataRateTX,
		"data_rate_rx": r.DataRateRX,

		"max_data_rate_tx": r.MaxDataRateTX,
		"max_data_rate_rx": r.MaxDataRateRX,

		"noise_margin_tx": r.NoiseMarginTX,
		"noise_margin_rx": r.NoiseMarginRX,

		"line_attenuation_tx": r.LineAttenuationTX,
		"line_attenuation_rx": r.LineAttenuationRX,

		"signal_attenuation_tx": r.SignalAttenuationTX,
		"signal_attenuation_rx": r.SignalAttenuationRX,
	}
}
