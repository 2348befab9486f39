package gcc

// ProbeState is the ProbeController's state machine position.
type ProbeState int

const (
	ProbeStateInit ProbeState = iota
	ProbeStateProbing
	ProbeStateWaitingForProbingResult
	ProbeStateDone
)

const (
	// probeCooldownMs is how long the controller waits after emitting a
	// probe sequence before it is willing to start another one. The real
	// GoogCC waits for the probe's feedback to arrive and be consumed by
	// ProbeBitrateEstimator; this is a time-based stand-in for "the prior
	// sequence has concluded" that keeps the controller allocation-free
	// and synchronous.
	probeCooldownMs = 1000

	// initialProbeRateMultiplier1/2 set the two exploratory probe
	// clusters fired once starting bitrates are known.
	initialProbeRateMultiplier1 = 3.0
	initialProbeRateMultiplier2 = 5.0

	upswingProbeRateMultiplier   = 1.5
	maxAllocationProbeMultiplier = 1.5

	defaultProbeDurationMs  = 100
	defaultProbeTargetCount = 5

	periodicAlrProbeIntervalMs = 5000
)

// ProbeController decides when to emit active probe clusters: after
// initial constraints, periodically while in ALR (when periodic ALR
// probing is enabled), on explicit request after overuse recovery or ALR
// backoff, and (optionally) when the max-total-allocated bitrate grows.
// Neither the end of an ALR period nor a later rise of the min/max
// constraints emits a probe by itself.
type ProbeController struct {
	state ProbeState

	minBitrateBps  int64
	maxBitrateBps  int64
	estimatedBps   int64
	maxAllocatedBps int64

	alrStartTimeMs *int64
	alrEndedTimeMs int64

	periodicAlrProbingEnabled bool
	lastProbeAtMs             int64
	nextClusterID             int
}

// NewProbeController creates a ProbeController in the Init state.
func NewProbeController(config KeyValueConfig) *ProbeController {
	_ = config // no ProbeController-specific field trials defined today
	return &ProbeController{state: ProbeStateInit, maxBitrateBps: PlusInfinityRate().BPS()}
}

func (p *ProbeController) canStartNewSequence(nowMs int64) bool {
	if p.state == ProbeStateInit || p.state == ProbeStateDone {
		return true
	}
	return nowMs-p.lastProbeAtMs >= probeCooldownMs
}

func (p *ProbeController) emit(nowMs int64, rates []int64) []ProbeClusterConfig {
	if !p.canStartNewSequence(nowMs) {
		return nil
	}
	configs := make([]ProbeClusterConfig, 0, len(rates))
	for _, rate := range rates {
		if rate <= 0 {
			continue
		}
		configs = append(configs, ProbeClusterConfig{
			AtTime:           MillisTimestamp(nowMs),
			TargetRate:       BitsPerSec(p.clampToBitrateLimits(rate)),
			TargetDuration:   MillisDelta(defaultProbeDurationMs),
			TargetProbeCount: defaultProbeTargetCount,
			ID:               p.nextClusterID,
		})
		p.nextClusterID++
	}
	if len(configs) == 0 {
		return nil
	}
	p.state = ProbeStateWaitingForProbingResult
	p.lastProbeAtMs = nowMs
	return configs
}

func (p *ProbeController) clampToBitrateLimits(bps int64) int64 {
	if p.minBitrateBps > 0 && bps < p.minBitrateBps {
		bps = p.minBitrateBps
	}
	if p.maxBitrateBps > 0 && p.maxBitrateBps != PlusInfinityRate().BPS() && bps > p.maxBitrateBps {
		bps = p.maxBitrateBps
	}
	return bps
}

// OnNetworkAvailability forwards network-up/down notices; probing only
// makes sense while the network is up.
func (p *ProbeController) OnNetworkAvailability(msg NetworkAvailability) []ProbeClusterConfig {
	if !msg.Available {
		return nil
	}
	return nil
}

// SetBitrates installs new min/starting/max bitrates and, the first time
// a starting rate is known, fires the two exploratory initial probes.
func (p *ProbeController) SetBitrates(minBps, startBps, maxBps int64, atTimeMs int64) []ProbeClusterConfig {
	p.minBitrateBps = minBps
	if maxBps > 0 {
		p.maxBitrateBps = maxBps
	}
	if startBps <= 0 {
		return nil
	}
	p.estimatedBps = startBps
	if p.state != ProbeStateInit {
		return nil
	}
	return p.emit(atTimeMs, []int64{
		int64(float64(startBps) * initialProbeRateMultiplier1),
		int64(float64(startBps) * initialProbeRateMultiplier2),
	})
}

// SetMaxBitrate updates the bitrate ceiling without triggering a probe.
func (p *ProbeController) SetMaxBitrate(maxBps int64) {
	p.maxBitrateBps = maxBps
}

// OnMaxTotalAllocatedBitrate triggers an upward probe when the maximum
// amount the encoder stack could ask for has grown, so the estimator has
// headroom data before the encoder actually needs it.
func (p *ProbeController) OnMaxTotalAllocatedBitrate(maxAllocatedBps int64, atTimeMs int64) []ProbeClusterConfig {
	grew := maxAllocatedBps > p.maxAllocatedBps
	p.maxAllocatedBps = maxAllocatedBps
	if !grew {
		return nil
	}
	return p.emit(atTimeMs, []int64{int64(float64(maxAllocatedBps) * maxAllocationProbeMultiplier)})
}

// SetEstimatedBitrate records the controller's latest fused estimate and
// returns any probes the new estimate itself should trigger (there are
// none today beyond what SetBitrates/RequestProbe already cover, but the
// method exists on the same contract as the source so a future probing
// strategy has a natural home).
func (p *ProbeController) SetEstimatedBitrate(bps int64, atTimeMs int64) []ProbeClusterConfig {
	p.estimatedBps = bps
	return nil
}

// RequestProbe asks for a single probe cluster, used after recovering
// from overuse or backing off during ALR, where a fresh capacity reading
// is valuable but no larger probing plan applies.
func (p *ProbeController) RequestProbe(atTimeMs int64) []ProbeClusterConfig {
	if p.estimatedBps <= 0 {
		return nil
	}
	return p.emit(atTimeMs, []int64{int64(float64(p.estimatedBps) * upswingProbeRateMultiplier)})
}

// EnablePeriodicAlrProbing toggles probing at a fixed cadence while the
// sender remains application-limited, so capacity isn't "forgotten" over
// a long idle-ish stretch.
func (p *ProbeController) EnablePeriodicAlrProbing(enabled bool) {
	p.periodicAlrProbingEnabled = enabled
}

// SetAlrStartTimeMs records (or clears) when the current ALR period
// began.
func (p *ProbeController) SetAlrStartTimeMs(startMs *int64) {
	p.alrStartTimeMs = startMs
}

// SetAlrEndedTimeMs records when ALR ended. The value is only stored;
// Process and RequestProbe do not read it.
func (p *ProbeController) SetAlrEndedTimeMs(atTimeMs int64) {
	p.alrEndedTimeMs = atTimeMs
}

// Process runs the periodic-tick portion of the state machine: periodic
// ALR probing and the cooldown-based move to Done once a probe sequence
// is considered concluded.
func (p *ProbeController) Process(nowMs int64) []ProbeClusterConfig {
	if p.state == ProbeStateWaitingForProbingResult && nowMs-p.lastProbeAtMs >= probeCooldownMs {
		p.state = ProbeStateDone
	}
	if !p.periodicAlrProbingEnabled || p.alrStartTimeMs == nil {
		return nil
	}
	if nowMs-p.lastProbeAtMs < periodicAlrProbeIntervalMs {
		return nil
	}
	return p.RequestProbe(nowMs)
}

// Reset returns the machine to Init, e.g. on a route change.
func (p *ProbeController) Reset(nowMs int64) {
	p.state = ProbeStateInit
	p.alrStartTimeMs = nil
	p.maxAllocatedBps = 0
	p.lastProbeAtMs = 0
}
