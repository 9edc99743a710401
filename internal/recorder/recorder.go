package recorder

import (
	"fmt"
	"time"

	"RackPower/internal/driver"
)

// Recorder keeps a local audit trail of observed power state
// transitions, independent of the region's event log.
type Recorder interface {
	Record(at time.Time, systemID string, oldState, newState driver.State) error
	Close() error
}

// Config selects and configures a recorder backend.
type Config struct {
	Type string `yaml:"Type"` // none, csv or influxdb

	CSV struct {
		Path string `yaml:"Path"`
	} `yaml:"CSV"`

	InfluxDB struct {
		URL    string `yaml:"URL"`
		Token  string `yaml:"Token"`
		Org    string `yaml:"Org"`
		Bucket string `yaml:"Bucket"`
	} `yaml:"InfluxDB"`
}

func New(config Config) (Recorder, error) {
	switch config.Type {
	case "", "none":
		return &nopRecorder{}, nil

	case "csv":
		if config.CSV.Path == "" {
			return nil, fmt.Errorf("csv recorder needs a file path")
		}
		return NewCSVRecorder(config.CSV.Path), nil

	case "influxdb":
		if config.InfluxDB.URL == "" {
			return nil, fmt.Errorf("influxdb recorder needs a URL")
		}
		return NewInfluxRecorder(config)

	default:
		return nil, fmt.Errorf("unsupported recorder type: %s", config.Type)
	}
}

type nopRecorder struct{}

func (*nopRecorder) Record(time.Time, string, driver.State, driver.State) error { return nil }

func (*nopRecorder) Close() error { return nil }
