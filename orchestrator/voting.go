package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/orchestral/conductor/capability"
	"github.com/orchestral/conductor/core"
	lg "github.com/orchestral/conductor/log"
)

// Strategy selects how votes are combined into a consensus decision.
type Strategy string

const (
	// MajorityVote tallies the boolean is_fraud field across surviving
	// votes; the decision is the majority value and the confidence is
	// majority_count / total.
	MajorityVote Strategy = "majority_vote"

	// WeightedAverage weights each vote's fraud score by its own confidence;
	// the decision threshold is 0.5 (inclusive) and the confidence reported
	// is the average weight.
	WeightedAverage Strategy = "weighted_average"
)

// Voting runs the same task through N agents concurrently and combines their
// votes into one decision. The registry must contain exactly numAgents
// capabilities. Each agent is individually error-isolated; failed agents are
// recorded and omitted from the vote set. The vote list always follows
// registration order, never completion order.
type Voting struct {
	*base

	numAgents int
	strategy  Strategy
}

func NewVoting(registry *capability.Registry, numAgents int, strategy Strategy, opts ...Option) *Voting {
	return &Voting{
		base:      newBase(registry, opts...),
		numAgents: numAgents,
		strategy:  strategy,
	}
}

// Execute collects votes and computes the consensus. Status is "success" when
// no agent failed, "partial_success" otherwise.
func (v *Voting) Execute(ctx context.Context, task core.Task) (core.Result, error) {
	return v.execute(ctx, task, v)
}

func (v *Voting) pattern() string {
	return "voting"
}

type agentVote struct {
	agent  string
	output core.Result
}

func (v *Voting) run(ctx context.Context, task core.Task) (core.Result, error) {
	names := v.registry.Names()
	if len(names) != v.numAgents {
		return nil, &ValidationError{
			Pattern: v.pattern(),
			Reason:  fmt.Sprintf("expected exactly %d registered agents, have %d", v.numAgents, len(names)),
		}
	}

	// Fan out; each agent writes into its own slot so votes stay in
	// registration order regardless of completion timing.
	outputs := make([]core.Result, len(names))
	failures := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		c, _ := v.registry.Get(name)

		wg.Add(1)
		go func(i int, name string, c capability.Capability) {
			defer wg.Done()

			out, err := v.invoke(ctx, name, c, task.Clone())
			if err != nil {
				failures[i] = err
				return
			}
			outputs[i] = out
		}(i, name, c)
	}
	wg.Wait()

	entries := make([]core.Result, 0, len(names))
	errList := make([]string, 0)
	votes := make([]agentVote, 0, len(names))

	for i, name := range names {
		if err := failures[i]; err != nil {
			v.logStep(name, core.StepFailure, nil, err)
			errList = append(errList, err.Error())
			entries = append(entries, core.Result{
				"agent":  name,
				"status": "error",
				"error":  err.Error(),
			})
			continue
		}

		out := outputs[i]
		v.logStep(name, core.StepSuccess, out, nil)
		votes = append(votes, agentVote{agent: name, output: out})
		entries = append(entries, core.Result{
			"agent":  name,
			"status": "success",
			"output": out,
		})
	}

	rejected := []string{}
	if v.options.OutlierRejection {
		var rejectedVotes []agentVote
		votes, rejectedVotes = rejectOutliers(votes, v.options.OutlierSensitivity)
		for _, rv := range rejectedVotes {
			rejected = append(rejected, rv.agent)
			v.logger.Debug("vote rejected as outlier",
				lg.AgentKey, rv.agent, lg.TaskIDKey, task.ID())
		}
	}

	decision := v.consensus(votes)
	decision["strategy"] = string(v.strategy)
	decision["votes_counted"] = len(votes)
	decision["rejected_outliers"] = rejected

	status := core.StatusSuccess
	if len(errList) > 0 {
		status = core.StatusPartialSuccess
	}

	return core.Result{
		StatusKey:            status,
		"agent_votes":        entries,
		"consensus_decision": decision,
		"errors":             errList,
		"cost_multiplier":    float64(v.numAgents - len(errList)),
	}, nil
}

func (v *Voting) consensus(votes []agentVote) core.Result {
	switch v.strategy {
	case WeightedAverage:
		return weightedAverageConsensus(votes)
	default:
		return majorityVoteConsensus(votes)
	}
}

func majorityVoteConsensus(votes []agentVote) core.Result {
	if len(votes) == 0 {
		return core.Result{core.IsFraudKey: false, core.ConfidenceKey: 0.0}
	}

	fraudCount := 0
	for _, vote := range votes {
		if isFraud, _ := vote.output.Bool(core.IsFraudKey); isFraud {
			fraudCount++
		}
	}

	isFraud := fraudCount > len(votes)-fraudCount
	majority := fraudCount
	if !isFraud {
		majority = len(votes) - fraudCount
	}

	return core.Result{
		core.IsFraudKey:    isFraud,
		core.ConfidenceKey: float64(majority) / float64(len(votes)),
	}
}

func weightedAverageConsensus(votes []agentVote) core.Result {
	var weightSum, weightedScore float64
	counted := 0

	for _, vote := range votes {
		score, ok := vote.output.Float(core.FraudScoreKey)
		if !ok {
			continue
		}

		// Votes without a confidence get full weight.
		weight := 1.0
		if c, ok := vote.output.Float(core.ConfidenceKey); ok {
			weight = c
		}

		weightSum += weight
		weightedScore += score * weight
		counted++
	}

	if counted == 0 {
		return core.Result{core.IsFraudKey: false, core.FraudScoreKey: 0.0, core.ConfidenceKey: 0.0}
	}

	var score float64
	if weightSum > 0 {
		score = weightedScore / weightSum
	} else {
		// All weights zero; fall back to an unweighted mean.
		for _, vote := range votes {
			if s, ok := vote.output.Float(core.FraudScoreKey); ok {
				score += s
			}
		}
		score /= float64(counted)
	}

	return core.Result{
		core.IsFraudKey:    score >= 0.5,
		core.FraudScoreKey: score,
		core.ConfidenceKey: weightSum / float64(counted),
	}
}

// rejectOutliers drops votes whose fraud score deviates from the group mean
// by more than sensitivity standard deviations. It requires at least 3
// numeric scores to act; votes without a numeric score are never rejected.
func rejectOutliers(votes []agentVote, sensitivity float64) (surviving, rejected []agentVote) {
	scored := make([]float64, 0, len(votes))
	for _, vote := range votes {
		if s, ok := vote.output.Float(core.FraudScoreKey); ok {
			scored = append(scored, s)
		}
	}

	if len(scored) < 3 {
		return votes, nil
	}

	var sum float64
	for _, s := range scored {
		sum += s
	}
	mean := sum / float64(len(scored))

	var variance float64
	for _, s := range scored {
		variance += (s - mean) * (s - mean)
	}
	stddev := math.Sqrt(variance / float64(len(scored)))

	if stddev == 0 {
		return votes, nil
	}

	for _, vote := range votes {
		s, ok := vote.output.Float(core.FraudScoreKey)
		if ok && math.Abs(s-mean)/stddev > sensitivity {
			rejected = append(rejected, vote)
			continue
		}
		surviving = append(surviving, vote)
	}

	return surviving, rejected
}
