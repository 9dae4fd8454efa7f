// Package statuspage extracts connection statistics from the Hub One's
// connection information page.
package statuspage

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"hubone-exporter/pkg/bytesize"
)

// ErrSessionExpired signals that the router served the login form
// instead of the status page. The caller is expected to log in again;
// this is not a parse failure.
var ErrSessionExpired = errors.New("session expired")

// Labeled rows on the connection information page. The numbering is the
// router's own; a firmware that serves the older layout only needs this
// table changed.
const (
	labelFirmware    = "3. Firmware version:"
	labelDataRate    = "6. Data rate:"
	labelMaxDataRate = "7. Maximum data rate:"
	labelNoiseMargin = "8. Noise margin:"
	labelLineAtten   = "9. Line attenuation:"
	labelSignalAtten = "10. Signal attenuation:"
	labelUsage       = "11. Data sent/received:"
)

const (
	sessionExpiredMarker  = "password protected"
	firmwareUpdatedPrefix = "Last updated "
	firmwareDateLayout    = "02/01/06"
)

// Parse turns a raw status page into a Record. now anchors the derived
// reboot timestamp.
func Parse(html string, now time.Time) (*Record, error) {
	if strings.Contains(html, sessionExpiredMarker) {
		return nil, ErrSessionExpired
	}
	page, err := NewPage(html)
	if err != nil {
		return nil, err
	}
	return Extract(page, now)
}

// Extract builds a Record from a FieldSource. Any missing or malformed
// field fails the whole extraction; partial records are never returned.
func Extract(src FieldSource, now time.Time) (*Record, error) {
	rec := &Record{}

	usage, err := src.Field(labelUsage)
	if err != nil {
		return nil, err
	}
	tx, rx, err := splitPair(usage)
	if err != nil {
		return nil, errors.Wrap(err, "data sent/received")
	}
	if rec.TotalTX, err = bytesize.Parse(tx); err != nil {
		return nil, errors.Wrap(err, "total tx")
	}
	if rec.TotalRX, err = bytesize.Parse(rx); err != nil {
		return nil, errors.Wrap(err, "total rx")
	}

	firmware, err := src.Field(labelFirmware)
	if err != nil {
		return nil, err
	}
	_, updated, ok := strings.Cut(firmware, firmwareUpdatedPrefix)
	if !ok {
		return nil, &FieldError{Label: labelFirmware}
	}
	rec.FirmwareUpdated, err = time.ParseInLocation(firmwareDateLayout, strings.TrimSpace(updated), time.Local)
	if err != nil {
		return nil, errors.Wrap(err, "firmware update date")
	}

	uptime, err := src.UptimeSeconds()
	if err != nil {
		return nil, err
	}
	rec.RebootedAt = now.Add(-time.Duration(uptime) * time.Second)

	if rec.DataRateTX, rec.DataRateRX, err = intPair(src, labelDataRate); err != nil {
		return nil, err
	}
	if rec.MaxDataRateTX, rec.MaxDataRateRX, err = intPair(src, labelMaxDataRate); err != nil {
		return nil, err
	}
	if rec.NoiseMarginTX, rec.NoiseMarginRX, err = floatPair(src, labelNoiseMargin); err != nil {
		return nil, err
	}
	if rec.LineAttenuationTX, rec.LineAttenuationRX, err = floatPair(src, labelLineAtten); err != nil {
		return nil, err
	}
	if rec.SignalAttenuationTX, rec.SignalAttenuationRX, err = floatPair(src, labelSignalAtten); err != nil {
		return nil, err
	}

	return rec, nil
}

// splitPair splits a "tx / rx" cell into its trimmed halves.
func splitPair(value string) (string, string, error) {
	tx, rx, ok := strings.Cut(value, "/")
	if !ok {
		return "", "", errors.Errorf("expected a tx/rx pair, got %q", value)
	}
	return strings.TrimSpace(tx), strings.TrimSpace(rx), nil
}

func intPair(src FieldSource, label string) (int64, int64, error) {
	value, err := src.Field(label)
	if err != nil {
		return 0, 0, err
	}
	tx, rx, err := splitPair(value)
	if err != nil {
		return 0, 0, errors.Wrap(err, label)
	}
	txN, err := strconv.ParseInt(tx, 10, 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "%s tx", label)
	}
	rxN, err := strconv.ParseInt(rx, 10, 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "%s rx", label)
	}
	return txN, rxN, nil
}

func floatPair(src FieldSource, label string) (float64, float64, error) {
	value, err := src.Field(label)
	if err != nil {
		return 0, 0, err
	}
	tx, rx, err := splitPair(value)
	if err != nil {
		return 0, 0, errors.Wrap(err, label)
	}
	txN, err := strconv.ParseFloat(tx, 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "%s tx", label)
	}
	rxN, err := strconv.ParseFloat(rx, 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "%s rx", label)
	}
	return txN, rxN, nil
}
