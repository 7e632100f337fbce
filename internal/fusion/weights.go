package fusion

// ProviderClass groups predictive systems by the kind of model behind them.
// Priority weights per class come from live tuning of the strategy roster;
// advanced model families outrank basic indicator systems.
type ProviderClass string

const (
	ClassNeural           ProviderClass = "neural"
	ClassMultiDimensional ProviderClass = "multi_dimensional"
	ClassMicrostructure   ProviderClass = "microstructure"
	ClassStatePrediction  ProviderClass = "state_prediction"
	ClassProfitOptimizer  ProviderClass = "profit_optimizer"
	ClassHeuristic        ProviderClass = "heuristic"
	ClassTechnical        ProviderClass = "technical"
)

var classWeights = map[ProviderClass]float64{
	ClassNeural:           3.0,
	ClassMultiDimensional: 2.8,
	ClassMicrostructure:   2.5,
	ClassStatePrediction:  2.2,
	ClassProfitOptimizer:  2.0,
	ClassHeuristic:        1.5,
	ClassTechnical:        0.8,
}

const defaultPriorityWeight = 1.0

// Registry maps system IDs to provider classes so the engine can look up
// priority weights for whatever subset of providers answered this cycle.
type Registry struct {
	classes map[string]ProviderClass
}

// NewRegistry builds a registry from a systemID -> class mapping.
func NewRegistry(classes map[string]ProviderClass) *Registry {
	m := make(map[string]ProviderClass, len(classes))
	for id, c := range classes {
		m[id] = c
	}
	return &Registry{classes: m}
}

// Register adds or replaces a system's class.
func (r *Registry) Register(systemID string, class ProviderClass) {
	r.classes[systemID] = class
}

// PriorityWeight returns the raw (un-normalized) priority weight for a
// system. Unknown systems get a neutral weight rather than an error so a new
// provider can run before its class is configured.
func (r *Registry) PriorityWeight(systemID string) float64 {
	if c, ok := r.classes[systemID]; ok {
		if w, ok := classWeights[c]; ok {
			return w
		}
	}
	return defaultPriorityWeight
}

// normalizedWeights returns per-signal weights summing to 1 in signal order.
func (r *Registry) normalizedWeights(systemIDs []string) []float64 {
	raw := make([]float64, len(systemIDs))
	total := 0.0
	for i, id := range systemIDs {
		raw[i] = r.PriorityWeight(id)
		total += raw[i]
	}
	if total <= 0 {
		// degenerate: fall back to equal weighting
		for i := range raw {
			raw[i] = 1.0 / float64(len(raw))
		}
		return raw
	}
	for i := range raw {
		raw[i] /= total
	}
	return raw
}
