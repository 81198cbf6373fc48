// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package telemetry publishes a node's debug surface (ASN, sync state,
// rank, MAC statistics) to an MQTT broker, adapted from the publish side
// of github.com/tve/devices' mqttradio command.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tve/tsch6/internal/tsch6log"
	"github.com/tve/tsch6/macstats"
	"github.com/tve/tsch6/slotfsm"
)

// Config describes how to reach the broker and identify this node's topics.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string // MQTT client ID; also the topic prefix
	Log      tsch6log.Printf
}

// Report is the JSON-encoded snapshot published on the node's stats topic.
type Report struct {
	ASN             uint64  `json:"asn"`
	Sync            bool    `json:"sync"`
	DAGrank         uint16  `json:"dagrank"`
	PreferredParent uint16  `json:"preferred_parent"`
	Stats           statsJSON `json:"stats"`
}

type statsJSON struct {
	NumSyncPkt    uint32 `json:"num_sync_pkt"`
	NumSyncAck    uint32 `json:"num_sync_ack"`
	MinCorrection int16  `json:"min_correction"`
	MaxCorrection int16  `json:"max_correction"`
	NumDeSync     uint32 `json:"num_desync"`
	NumTicsOn     uint32 `json:"num_tics_on"`
	NumTicsTotal  uint32 `json:"num_tics_total"`
}

// Publisher holds a persistent connection to an MQTT broker.
type Publisher struct {
	conn mqtt.Client
	base string // topic prefix, e.g. "tsch6/<clientID>"
	log  tsch6log.Printf
}

// Dial connects to the broker described by cfg. The connection
// re-establishes itself automatically on disconnect, per the paho client's
// AutoReconnect default.
func Dial(cfg Config) (*Publisher, error) {
	logger := tsch6log.Tagged(cfg.Log, "telemetry")
	mqtt.ERROR = log.New(logLogger{logger}, "", 0)

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetAutoReconnect(true)
	opts.ClientID = cfg.ClientID
	opts.Username = cfg.User
	opts.Password = cfg.Password

	conn := mqtt.NewClient(opts)
	if token := conn.Connect(); !token.WaitTimeout(10 * time.Second) {
		return nil, token.Error()
	}
	logger("connected to %s:%d", cfg.Host, cfg.Port)
	return &Publisher{conn: conn, base: "tsch6/" + cfg.ClientID, log: logger}, nil
}

// Close disconnects from the broker, waiting up to 250ms to flush.
func (p *Publisher) Close() { p.conn.Disconnect(250) }

// PublishStats reports a node's current debug surface on "<base>/stats".
func (p *Publisher) PublishStats(asn uint64, sync bool, dagRank, preferredParent uint16, s slotfsm.Stats) {
	r := Report{
		ASN:             asn,
		Sync:            sync,
		DAGrank:         dagRank,
		PreferredParent: preferredParent,
		Stats: statsJSON{
			NumSyncPkt:    s.NumSyncPkt,
			NumSyncAck:    s.NumSyncAck,
			MinCorrection: s.MinCorrection,
			MaxCorrection: s.MaxCorrection,
			NumDeSync:     s.NumDeSync,
			NumTicsOn:     s.NumTicsOn,
			NumTicsTotal:  s.NumTicsTotal,
		},
	}
	payload, err := json.Marshal(r)
	if err != nil {
		p.log("cannot marshal report: %s", err)
		return
	}
	p.conn.Publish(p.base+"/stats", 0, false, payload)
}

// PublishMacStats reports s as the compact varint-encoded blob produced by
// macstats.Encode, on "<base>/macstats/<neighbor>".
func (p *Publisher) PublishMacStats(neighbor uint16, s slotfsm.Stats) {
	p.conn.Publish(fmt.Sprintf("%s/macstats/%#04x", p.base, neighbor), 0, false, macstats.Encode(s))
}

// logLogger adapts a tsch6log.Printf into an io.Writer for log.New, since
// paho's ERROR/DEBUG/WARN hooks are stdlib *log.Logger values.
type logLogger struct{ p tsch6log.Printf }

func (l logLogger) Write(b []byte) (int, error) {
	l.p("%s", string(b))
	return len(b), nil
}
