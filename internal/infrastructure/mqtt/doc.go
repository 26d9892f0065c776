// Package mqtt is the bridge's broker connection.
//
// MQTT is the bridge's outward face: device state goes out on retained
// state topics, consumers send commands in on command topics, and each
// command gets a correlated ack back. The client here wraps paho with the
// behaviour the bridge depends on:
//
//   - subscriptions are tracked and replayed after a reconnect
//   - an LWT on behome/bridge/status announces an unexpected death, and a
//     graceful Close publishes a distinct shutdown status
//   - message handlers run behind panic recovery
//
// Topic names are built through Topics so the flat
// behome/{category}/{platform}/{device_id} scheme stays in one place.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(topic, payload)
//	    })
//
// TLS to the broker is expected outside local development; payloads carry
// no encryption of their own.
package mqtt
