package client

import "time"

const (
	alpha = 0.125
	beta  = 0.25
)

// rttEstimator 平滑 RTT 与 RTT 方差，只接受未重传单元的样本
type rttEstimator struct {
	smoothedRTT time.Duration
	rttVar      time.Duration
}

func (e *rttEstimator) update(rtt time.Duration) {
	if e.smoothedRTT == 0 {
		e.smoothedRTT = rtt
		e.rttVar = rtt / 2
		return
	}
	rttDiff := e.smoothedRTT - rtt
	if rttDiff < 0 {
		rttDiff = -rttDiff
	}
	e.rttVar = time.Duration((1-beta)*float64(e.rttVar) + beta*float64(rttDiff))
	e.smoothedRTT = time.Duration((1-alpha)*float64(e.smoothedRTT) + alpha*float64(rtt))
}

// rto 尚无样本时返回 0
func (e *rttEstimator) rto() time.Duration {
	if e.smoothedRTT == 0 {
		return 0
	}
	return e.smoothedRTT + 4*e.rttVar
}
