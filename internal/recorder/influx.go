package recorder

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"RackPower/internal/driver"
)

// InfluxRecorder writes transitions as points in an InfluxDB bucket,
// one point per transition with the node as a tag.
type InfluxRecorder struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

func NewInfluxRecorder(config Config) (*InfluxRecorder, error) {
	client := influxdb2.NewClient(config.InfluxDB.URL, config.InfluxDB.Token)
	if _, err := client.Ping(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping InfluxDB: %w", err)
	}
	return &InfluxRecorder{
		client: client,
		write:  client.WriteAPIBlocking(config.InfluxDB.Org, config.InfluxDB.Bucket),
	}, nil
}

func (r *InfluxRecorder) Record(at time.Time, systemID string, oldState, newState driver.State) error {
	point := influxdb2.NewPoint(
		"power_state_change",
		map[string]string{"system_id": systemID},
		map[string]interface{}{
			"old_state": string(oldState),
			"new_state": string(newState),
		},
		at,
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.write.WritePoint(ctx, point)
}

func (r *InfluxRecorder) Close() error {
	r.client.Close()
	return nil
}
