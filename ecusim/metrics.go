package ecusim

import "sync/atomic"

// Metrics contains atomic counters for a Simulator.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// FramesReceived indicates the number of frames read from the bus.
	FramesReceived atomic.Uint64
	// FramesIgnored indicates the number of frames dropped before dispatch.
	FramesIgnored atomic.Uint64

	// QueriesAnswered indicates the number of queries answered with a Single or First Frame.
	QueriesAnswered atomic.Uint64
	// QueriesUnknown indicates the number of queries without a table entry.
	QueriesUnknown atomic.Uint64

	// ReplyFramesSent indicates the number of genuine response frames sent.
	ReplyFramesSent atomic.Uint64
	// ConsecutiveFramesSent indicates the number of Consecutive Frames sent.
	ConsecutiveFramesSent atomic.Uint64
	// NoiseFramesSent indicates the number of noise frames sent.
	NoiseFramesSent atomic.Uint64

	// ContinuationsWithoutData indicates Flow Control frames with nothing pending.
	ContinuationsWithoutData atomic.Uint64
	// SessionsReplaced indicates pending transmissions discarded by a newer response.
	SessionsReplaced atomic.Uint64
	// SessionsEvicted indicates pending transmissions dropped by the sweeper.
	SessionsEvicted atomic.Uint64
	// SessionsAborted indicates pending transmissions cancelled by an overflow Flow Control.
	SessionsAborted atomic.Uint64
}

func (m *Metrics) incFramesReceived(n int) {
	m.FramesReceived.Add(uint64(n))
}

func (m *Metrics) incFramesIgnored() {
	m.FramesIgnored.Add(1)
}

func (m *Metrics) incQueriesAnswered() {
	m.QueriesAnswered.Add(1)
}

func (m *Metrics) incQueriesUnknown() {
	m.QueriesUnknown.Add(1)
}

func (m *Metrics) incReplyFramesSent() {
	m.ReplyFramesSent.Add(1)
}

func (m *Metrics) incConsecutiveFramesSent() {
	m.ConsecutiveFramesSent.Add(1)
}

func (m *Metrics) incNoiseFramesSent() {
	m.NoiseFramesSent.Add(1)
}

func (m *Metrics) incContinuationsWithoutData() {
	m.ContinuationsWithoutData.Add(1)
}

func (m *Metrics) incSessionsReplaced() {
	m.SessionsReplaced.Add(1)
}

func (m *Metrics) addSessionsEvicted(n int) {
	m.SessionsEvicted.Add(uint64(n))
}

func (m *Metrics) incSessionsAborted() {
	m.SessionsAborted.Add(1)
}
