package sim

// Params configures a dispatch run. Times are minutes.
type Params struct {
	ServiceTime        float64 `json:"serviceTime" yaml:"service_time"`
	HandlingTime       float64 `json:"handlingTime" yaml:"handling_time"`
	LatenessWeight     float64 `json:"latenessWeight" yaml:"lateness_weight"`
	Horizon            float64 `json:"horizon" yaml:"horizon"`
	RetryStep          float64 `json:"retryStep" yaml:"retry_step"`
	MaxIterations      int     `json:"maxIterations" yaml:"max_iterations"`
	UndeliveredPenalty float64 `json:"undeliveredPenalty" yaml:"undelivered_penalty"`
}

func DefaultParams() Params {
	return Params{
		ServiceTime:        5,
		HandlingTime:       1,
		LatenessWeight:     100,
		Horizon:            24 * 60,
		RetryStep:          1,
		MaxIterations:      20000,
		UndeliveredPenalty: 10,
	}
}

// withDefaults fills the loop-control fields. Service, handling and
// lateness weight are taken as given since zero is meaningful for them.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Horizon <= 0 {
		p.Horizon = d.Horizon
	}
	if p.RetryStep <= 0 {
		p.RetryStep = d.RetryStep
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = d.MaxIterations
	}
	if p.UndeliveredPenalty <= 0 {
		p.UndeliveredPenalty = d.UndeliveredPenalty
	}
	return p
}

func (p Params) weights() Weights {
	return Weights{LatenessWeight: p.LatenessWeight, UndeliveredPenalty: p.UndeliveredPenalty}
}
