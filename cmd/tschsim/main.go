// Copyright 2026 by the tsch6 authors, see LICENSE file

// Command tschsim runs a small mesh of simulated tsch6 nodes sharing one
// software radio medium, for exercising the slot FSM, neighbor discovery
// and rank selection without real 802.15.4 hardware.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tve/tsch6"
	"github.com/tve/tsch6/asn"
	"github.com/tve/tsch6/internal/tsch6log"
	"github.com/tve/tsch6/node"
	"github.com/tve/tsch6/schedule"
	"github.com/tve/tsch6/simradio"
	"github.com/tve/tsch6/telemetry"
	"github.com/tve/tsch6/topology"
)

type idManager struct {
	id     uint16
	isRoot bool
}

func (m idManager) MyShortID() uint16 { return m.id }
func (m idManager) IsDAGRoot() bool   { return m.isRoot }

func main() {
	help := flag.Bool("help", false, "print usage help")
	configFile := flag.String("config", "tschsim.toml", "path to config file")
	slots := flag.Int("slots", 200, "number of slots to simulate")
	flag.Parse()

	if *help {
		fmt.Fprintf(os.Stderr, "Usage: %s:\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	config := &Config{}
	rawConfig, err := os.ReadFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot access config file: %s\n", err)
		os.Exit(1)
	}
	if err := toml.Unmarshal(rawConfig, config); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot parse config file: %s\n", err)
		os.Exit(1)
	}
	if len(config.Node) == 0 {
		fmt.Fprintf(os.Stderr, "At least one node must be specified in the config\n")
		os.Exit(1)
	}

	logger := tsch6log.Nop
	if config.Debug {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
		logger = log.Printf
	}

	var pub *telemetry.Publisher
	if config.Mqtt != nil {
		pub, err = telemetry.Dial(telemetry.Config{
			Host: config.Mqtt.Host, Port: config.Mqtt.Port,
			User: config.Mqtt.User, Password: config.Mqtt.Password,
			ClientID: "tschsim", Log: logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect to MQTT broker: %s\n", err)
			os.Exit(2)
		}
		defer pub.Close()
	}

	hopper := asn.NewHopper(asn.DefaultTemplate, []uint8{11, 12, 13, 14}, 0)
	medium := simradio.NewMedium()

	var chainTables []*schedule.StaticTable
	if len(config.Node) == 3 {
		a, b, c := schedule.ThreeNodeChainTables()
		chainTables = []*schedule.StaticTable{a, b, c}
	}

	log.Printf("Configuring %d node(s)", len(config.Node))
	nodes := make([]*node.Node, len(config.Node))
	timers := make([]*simTimer, len(config.Node))
	for i, nc := range config.Node {
		sched := schedule.NewStaticTable(SlotframeLength)
		if chainTables != nil {
			sched = chainTables[i]
		}

		topo := topology.New()
		if len(nc.Topology) > 0 {
			ids := make([]uint16, len(nc.Topology))
			for j, id := range nc.Topology {
				ids[j] = uint16(id)
			}
			topo.Set(ids)
		}

		timer := &simTimer{}
		timers[i] = timer

		radio := medium.NewRadio(nil, -60) // sink patched in just below

		n := node.New(node.Config{
			Schedule:          sched,
			EBSlotOffset:      uint16(nc.EBSlotOffset),
			Radio:             radio,
			Timer:             timer,
			IDManager:         idManager{id: uint16(nc.ShortID), isRoot: nc.DAGRoot},
			Topology:          topo,
			SlotframeLength:   SlotframeLength,
			Hopper:            hopper,
			NeighborTableSize: tsch6.DefaultNeighborTableSize,
			Log:               tsch6log.Tagged(logger, nc.Name),
			OnRxData: func(src uint16, payload []byte) {
				logger("%s: rx from %#04x: %q", nc.Name, src, payload)
			},
		})
		radio.SetSink(n)
		nodes[i] = n
	}

	log.Printf("Running simulation for %d slots", *slots)
	for slot := 0; slot < *slots; slot++ {
		for _, n := range nodes {
			n.Tick()
		}
		// Drain each node's timer-driven sub-slot steps; a
		// watchdog-bounded number of TimerFire calls per node per slot is
		// enough to reach Sleep again.
		for step := 0; step < 16; step++ {
			for i, n := range nodes {
				if timers[i].Advance(64) {
					n.TimerFire()
				}
			}
			// Give the prior step's asynchronous radio callbacks (see
			// simradio's goroutine-based delivery) a chance to land before
			// the next timer step, since this simulated clock otherwise
			// advances with no relation to real wall-clock radio airtime.
			time.Sleep(time.Millisecond)
		}
		if pub != nil {
			for _, n := range nodes {
				pub.PublishStats(uint64(n.ASN()), n.IsSync(), n.MyDAGrank(), n.PreferredParent(), n.Stats())
			}
		}
	}

	log.Printf("Simulation complete")
	for _, n := range nodes {
		for _, line := range n.Trace() {
			fmt.Println(line)
		}
	}
	time.Sleep(10 * time.Millisecond) // let any last MQTT publish flush
}
