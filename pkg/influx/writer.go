// Package influx writes collection points to an InfluxDB 1.x database.
package influx

import (
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/pkg/errors"
)

const writeTimeout = 3 * time.Second

// Writer is the metrics sink backing the collection loop.
type Writer struct {
	client   client.Client
	database string
}

func New(addr, database string) (*Writer, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:    addr,
		Timeout: writeTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "influxdb client")
	}
	return &Writer{client: c, database: database}, nil
}

// WritePoint writes a single timestamped point. One batch per call: a
// cycle either lands whole or not at all.
func (w *Writer) WritePoint(measurement string, at time.Time, fields map[string]interface{}) error {
	batch, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  w.database,
		Precision: "s",
	})
	if err != nil {
		return err
	}

	point, err := client.NewPoint(measurement, nil, fields, at)
	if err != nil {
		return errors.Wrap(err, "build point")
	}
	batch.AddPoint(point)

	return errors.Wrap(w.client.Write(batch), "write point")
}

func (w *Writer) Close() error {
	return w.client.Close()
}
