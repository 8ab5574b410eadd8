package trainer

import (
	"hash/fnv"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
)

// Action is an agent's choice: an index into its action space and the
// artifact text submitted to the episode.
type Action struct {
	Index int
	Text  string
}

// Transition is one step of experience with its discounted return.
type Transition struct {
	Obs    string
	Action int
	Return float64
}

// Agent chooses artifacts and learns from experience.
type Agent interface {
	Act(obs string, explore bool) Action
	Learn(batch []Transition)
}

// DefaultCandidates is the artifact pool the policy agent chooses from.
var DefaultCandidates = []string{
	"function subtract(a, b) { return a - b; }",
	"function multiply(a, b) { return a * b; }",
	"const sum = (a, b) => a + b;",
	"def plus(a, b): return a + b",
	"function add(a, b) { return a + b; }",
	"function concat(a, b) { return `${a}${b}`; }",
}

// PolicyAgent is a linear softmax policy over a fixed candidate pool.
// Observations are featurized as a hashed bag of words of width dim.
type PolicyAgent struct {
	candidates []string
	dim        int
	lr         float64
	w          [][]float64
	rng        *rand.Rand
}

// NewPolicyAgent creates an agent with zero weights (a uniform policy).
func NewPolicyAgent(candidates []string, dim int, lr float64, rng *rand.Rand) *PolicyAgent {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	w := make([][]float64, len(candidates))
	for i := range w {
		w[i] = make([]float64, dim)
	}
	return &PolicyAgent{candidates: candidates, dim: dim, lr: lr, w: w, rng: rng}
}

// Act samples from the policy when exploring and takes the argmax otherwise.
func (a *PolicyAgent) Act(obs string, explore bool) Action {
	p := a.probs(a.features(obs))
	idx := argmax(p)
	if explore {
		u := a.rng.Float64()
		var acc float64
		for i, pi := range p {
			acc += pi
			if u < acc {
				idx = i
				break
			}
		}
	}
	return Action{Index: idx, Text: a.candidates[idx]}
}

// Learn applies one REINFORCE update with a mean-return baseline.
func (a *PolicyAgent) Learn(batch []Transition) {
	if len(batch) == 0 {
		return
	}
	var baseline float64
	for _, t := range batch {
		baseline += t.Return
	}
	baseline /= float64(len(batch))

	scale := a.lr / float64(len(batch))
	for _, t := range batch {
		adv := t.Return - baseline
		if adv == 0 {
			continue
		}
		x := a.features(t.Obs)
		p := a.probs(x)
		for b := range a.w {
			g := -p[b]
			if b == t.Action {
				g += 1
			}
			for _, f := range x {
				a.w[b][f.bucket] += scale * adv * g * f.value
			}
		}
	}
}

// Probabilities returns the policy distribution for an observation.
func (a *PolicyAgent) Probabilities(obs string) []float64 {
	return a.probs(a.features(obs))
}

// feature is one non-zero entry of a sparse observation vector.
type feature struct {
	bucket int
	value  float64
}

// features hashes tokens into dim buckets, L2-normalized, with a bias term.
// Entries are ordered by bucket so float sums over them are deterministic.
func (a *PolicyAgent) features(obs string) []feature {
	counts := map[int]float64{0: 1}
	for _, tok := range strings.Fields(obs) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		counts[int(h.Sum32()%uint32(a.dim))] += 1
	}
	x := make([]feature, 0, len(counts))
	var norm float64
	for _, b := range slices.Sorted(maps.Keys(counts)) {
		v := counts[b]
		x = append(x, feature{bucket: b, value: v})
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range x {
		x[i].value /= norm
	}
	return x
}

func (a *PolicyAgent) probs(x []feature) []float64 {
	logits := make([]float64, len(a.w))
	maxLogit := math.Inf(-1)
	for b, wb := range a.w {
		for _, f := range x {
			logits[b] += wb[f.bucket] * f.value
		}
		maxLogit = max(maxLogit, logits[b])
	}
	var sum float64
	for b := range logits {
		logits[b] = math.Exp(logits[b] - maxLogit)
		sum += logits[b]
	}
	for b := range logits {
		logits[b] /= sum
	}
	return logits
}

func argmax(p []float64) int {
	best := 0
	for i := range p {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}
