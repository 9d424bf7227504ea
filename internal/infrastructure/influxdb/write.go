package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTelegram records one bus telegram.
//
// Tags keep cardinality bounded to bridge, direction and group address;
// the raw payload value goes in a field.
//
//	client.WriteTelegram("knx", "incoming", "1/1/1", "GroupValueWrite", 1)
func (c *Client) WriteTelegram(bridge, direction, address, telegramType string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"knx_telegram",
		map[string]string{
			"bridge":    bridge,
			"direction": direction,
			"address":   address,
			"type":      telegramType,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEntityState records an entity state transition.
//
//	client.WriteEntityState("switch.knx_es_ab12", "switch", 1)
func (c *Client) WriteEntityState(entityID, platform string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"entity_state",
		map[string]string{
			"entity_id": entityID,
			"platform":  platform,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteReconcileOp records the outcome and latency of a configuration
// store operation (create, update, delete, reload).
func (c *Client) WriteReconcileOp(operation, platform string, success bool, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"reconcile_op",
		map[string]string{
			"operation": operation,
			"platform":  platform,
		},
		map[string]interface{}{
			"success":     success,
			"duration_ms": float64(duration.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point for measurements the helpers do not
// cover. Tags should stay low-cardinality.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
