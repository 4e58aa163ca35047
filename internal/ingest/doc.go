// Package ingest mirrors Z-Way metric updates from MQTT into the
// virtual device registry.
//
// The Z-Way publisher emits a JSON message on zway/state/{device_id}
// for every metric update:
//
//	{"device_id":"ZWayVDev_zway_30-0-38","device_type":"switchMultilevel",
//	 "name":"Hall Dimmer","metrics":{"level":55}}
//
// The consumer applies each update to the registry (which fires the
// change/modify events the socket bridge forwards outward) and records
// numeric levels to InfluxDB for history. Devices seen for the first
// time are created in the registry when the message carries a device
// type.
package ingest
