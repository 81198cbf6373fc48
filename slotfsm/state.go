package slotfsm

// State enumerates the 26 symbolic states of the slot FSM (§3). Every state
// other than Sleep must transition to either Sleep or an error-recovered
// Sleep before the next slot boundary.
type State uint8

const (
	Sleep State = iota

	SyncListen
	SyncRX
	SyncProc

	TxDataOffset
	TxDataPrepare
	TxDataReady
	TxDataDelay
	TxData

	RxAckOffset
	RxAckPrepare
	RxAckReady
	RxAckListen
	RxAck

	TxProc

	RxDataOffset
	RxDataPrepare
	RxDataReady
	RxDataListen
	RxData

	TxAckOffset
	TxAckPrepare
	TxAckReady
	TxAckDelay
	TxAck

	RxProc
)

var stateNames = [...]string{
	"sleep",
	"sync-listen", "sync-rx", "sync-proc",
	"tx-data-offset", "tx-data-prepare", "tx-data-ready", "tx-data-delay", "tx-data",
	"rx-ack-offset", "rx-ack-prepare", "rx-ack-ready", "rx-ack-listen", "rx-ack",
	"tx-proc",
	"rx-data-offset", "rx-data-prepare", "rx-data-ready", "rx-data-listen", "rx-data",
	"tx-ack-offset", "tx-ack-prepare", "tx-ack-ready", "tx-ack-delay", "tx-ack",
	"rx-proc",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(?)"
}
