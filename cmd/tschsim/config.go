// Copyright 2026 by the tsch6 authors, see LICENSE file

package main

// Config is the top-level mqttradio-style TOML configuration for a
// simulated mesh of tsch6 nodes sharing one software radio medium.
type Config struct {
	Debug bool
	Help  bool
	Mqtt  *MqttConfig
	Node  []NodeConfig
}

// MqttConfig describes an optional telemetry broker; omit the [Mqtt] table
// to run without publishing.
type MqttConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// NodeConfig describes one simulated node.
type NodeConfig struct {
	Name         string
	ShortID      int    `toml:"short_id"`
	DAGRoot      bool   `toml:"dag_root"`
	EBSlotOffset int    `toml:"eb_slot_offset"`
	Topology     []int  // allow-listed peer short IDs; empty accepts every peer
}

// SlotframeLength is the fixed slotframe length used by the built-in
// three-node relay schedule (ext_schedule.c's SCHEDULE_LENGTH).
const SlotframeLength = 3
