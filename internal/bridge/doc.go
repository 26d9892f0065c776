// Package bridge translates between BeHome cloud devices and MQTT entities.
//
// Each supported platform (switch, light, fan, climate, cover, water_heater,
// media_player, air_purifier, sensor) has an Adapter that maps vendor state
// fields to platform state attributes and platform commands to vendor cloud
// messages. The Service wires the adapters to MQTT: it subscribes to the
// command topics, forwards translated commands to the cloud, publishes
// retained state and availability on every observed change, and acknowledges
// each command with a correlation ID.
//
// Command flow:
//
//	behome/command/{platform}/{id}  →  adapter.Translate  →  cloud send
//	                                →  optimistic local state + hold window
//	                                →  behome/ack/{platform}/{id}
//	                                →  delayed poll refresh
//
// State flow (driven by poll reconciliation results):
//
//	behome/state/{platform}/{id}          retained, on change
//	behome/state/sensor/{id}/{reading}    retained, one topic per reading
//	behome/availability/{id}              retained, "online"/"offline"
//
// The optimistic update is held for a short window so the next poll does not
// overwrite a just-commanded state with a stale cloud snapshot.
//
// Thread Safety: the Service is safe for concurrent use; adapters are
// stateless and safe to share.
package bridge
