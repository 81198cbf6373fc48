// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package tsch6 holds the protocol-wide constants shared by every component
// (§6 of the design: externally visible constants) so that asn, ie,
// neighbors, rank, slotfsm, timesync and beacon all agree on one set of
// numbers instead of each redeclaring them.
package tsch6

import "time"

// Radio / frame constants (§6).
const (
	SynchronizingChannel = 25  // SYNCHRONIZING_CHANNEL
	TxRetries            = 3   // TXRETRIES
	TxPower              = 31  // TX_POWER, dBm-ish driver units
	MaxFrameLength       = 128 // LENGTH_IEEE154_MAX
	FirstFrameByte       = 1   // FIRST_FRAME_BYTE
)

// Timing constants (§6, §4.6).
const (
	EBPeriod      = 1000 * time.Millisecond // EBPERIOD
	EBPeriodTimer = 2000 * time.Millisecond // EB_PERIOD_TIMER
	EBPeriodStep  = 100 * time.Millisecond  // EB_PERIOD_AMOUNT
	EBPeriodMax   = 5000 * time.Millisecond // EB_PERIOD_MAX (OpenWSN ceiling)
	MaxKaPeriod   = 200                     // MAXKAPERIOD, slots
	DesyncTimeout = 800                     // DESYNCTIMEOUT, slots
)

// Routing constants (§4.4).
const (
	DefaultLinkCost     = 1      // DEFAULTLINKCOST
	MinHopRankIncrease  = 256    // MINHOPRANKINCREASE
	MaxDAGRank          = 0xFFFF // MAXDAGRANK
	BroadcastID         = 0xFFFF // BROADCAST_ID
	ParentPreferenceMax = 0xFF   // parentPreference sentinel for "is preferred"
)

// Neighbor stability hysteresis constants (§4.3).
const (
	BadNeighborMaxRSSI       = -80 // dBm; above this while unstable nudges toward stable
	GoodNeighborMinRSSI      = -90 // dBm; below this while stable nudges toward unstable
	SwitchStabilityThreshold = 3   // consecutive same-direction observations to flip state
)

// Blacklist constants (§4.3, §6).
const (
	DefaultBlacklist = 0xFF00 // DEFAULT_BLACKLIST: upper half of the 16-channel space
	NumBlacklistSlots = 2
)

// Time-correction constants (§4.5).
const (
	LimitLargeTimeCorrection = 16 // ticks; larger corrections are clipped
)

// Table/window sizing (compile-time capacities per §9).
const (
	DefaultNeighborTableSize = 20   // compile-time neighbor table capacity
	TxStatsWindow            = 0xFF // numTx/numTxACK 8-bit window before halving
	DutyCycleWindowLimit     = 0xFFFF
	StatsWindowLimit         = 0xFFFF // not referenced by the FSM: numTics halving uses DutyCycleWindowLimit, and minCorrection/maxCorrection have no ceiling
	DefaultPacketPoolSize    = 4     // compile-time OpenQueueEntry pool capacity
)
