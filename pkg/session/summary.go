package session

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/OFFIS-RIT/motifs/pkg/role"
)

// Topics lists the topic labels in the order of a session topic vector.
var Topics = [...]string{
	"Disability",
	"Gender",
	"Intellectual",
	"Physical",
	"Political",
	"Race",
	"Religious",
	"Sexual",
	"Social_status",
	"Other",
}

// Summary is the set of scalar features stored next to a serialized graph.
// Every score is out-degree minus in-degree.
type Summary struct {
	NumNodes           int `json:"num_nodes"`
	NumEdges           int `json:"num_edges"`
	NumBullies         int `json:"num_bullies"`
	NumVictims         int `json:"num_victims"`
	NumAggVictims      int `json:"num_agg_victims"`
	NumNonAggVictims   int `json:"num_non_agg_victims"`
	NumDefenders       int `json:"num_defenders"`
	NumNonAggDefenders int `json:"num_non_agg_defenders"`
	NumAggDefenders    int `json:"num_agg_defenders"`

	MainVictimInDeg          float64 `json:"main_victim_in_deg"`
	MainVictimWeightedInDeg  float64 `json:"main_victim_weighted_in_deg"`
	MainVictimOutDeg         float64 `json:"main_victim_out_deg"`
	MainVictimWeightedOutDeg float64 `json:"main_victim_weighted_out_deg"`

	VictimAvgInDeg          float64 `json:"victim_avg_in_deg"`
	VictimAvgWeightedInDeg  float64 `json:"victim_avg_weighted_in_deg"`
	VictimAvgOutDeg         float64 `json:"victim_avg_out_deg"`
	VictimAvgWeightedOutDeg float64 `json:"victim_avg_weighted_out_deg"`
	VictimScore             float64 `json:"victim_score"`
	VictimScoreWeighted     float64 `json:"victim_score_weighted"`

	BullyAvgInDeg          float64 `json:"bully_avg_in_deg"`
	BullyAvgWeightedInDeg  float64 `json:"bully_avg_weighted_in_deg"`
	BullyAvgOutDeg         float64 `json:"bully_avg_out_deg"`
	BullyAvgWeightedOutDeg float64 `json:"bully_avg_weighted_out_deg"`
	BullyScore             float64 `json:"bully_score"`
	BullyScoreWeighted     float64 `json:"bully_score_weighted"`

	MainVictimScore         float64 `json:"main_victim_score"`
	MainVictimScoreWeighted float64 `json:"main_victim_score_weighted"`
}

type degrees struct {
	in, weightedIn, out, weightedOut float64
}

func (s *Graph) degreesAt(i int) degrees {
	var d degrees
	for _, e := range s.g.In(i) {
		d.in++
		d.weightedIn += e.Weight
	}
	for _, e := range s.g.Out(i) {
		d.out++
		d.weightedOut += e.Weight
	}
	return d
}

// averageDegrees averages the degrees over ids. An empty set averages to 0.
func (s *Graph) averageDegrees(ids []role.Identity) degrees {
	if len(ids) == 0 {
		return degrees{}
	}
	in := make([]float64, 0, len(ids))
	wIn := make([]float64, 0, len(ids))
	out := make([]float64, 0, len(ids))
	wOut := make([]float64, 0, len(ids))
	for _, id := range ids {
		i, _ := s.g.Index(id)
		d := s.degreesAt(i)
		in = append(in, d.in)
		wIn = append(wIn, d.weightedIn)
		out = append(out, d.out)
		wOut = append(wOut, d.weightedOut)
	}
	return degrees{
		in:          stat.Mean(in, nil),
		weightedIn:  stat.Mean(wIn, nil),
		out:         stat.Mean(out, nil),
		weightedOut: stat.Mean(wOut, nil),
	}
}

// Summarize computes the scalar features of the graph. Main victim degrees
// are 0 when the graph has no main victim.
func (s *Graph) Summarize() Summary {
	counts := make(map[role.Role]int)
	for id := range s.g.Nodes() {
		counts[id.Role]++
	}

	victims := s.Victims()
	bullies := s.Bullies()

	var mv degrees
	if id, ok := s.MainVictim(); ok {
		i, _ := s.g.Index(id)
		mv = s.degreesAt(i)
	}
	va := s.averageDegrees(victims)
	ba := s.averageDegrees(bullies)

	return Summary{
		NumNodes:           s.g.Len(),
		NumEdges:           s.g.Size(),
		NumBullies:         len(bullies),
		NumVictims:         len(victims),
		NumAggVictims:      counts[role.AggressiveVictim],
		NumNonAggVictims:   counts[role.NonAggressiveVictim],
		NumDefenders:       len(s.Defenders()),
		NumNonAggDefenders: counts[role.NonAggressiveDefenderDirect] + counts[role.NonAggressiveDefenderSupport],
		NumAggDefenders:    counts[role.AggressiveDefender],

		MainVictimInDeg:          mv.in,
		MainVictimWeightedInDeg:  mv.weightedIn,
		MainVictimOutDeg:         mv.out,
		MainVictimWeightedOutDeg: mv.weightedOut,

		VictimAvgInDeg:          va.in,
		VictimAvgWeightedInDeg:  va.weightedIn,
		VictimAvgOutDeg:         va.out,
		VictimAvgWeightedOutDeg: va.weightedOut,
		VictimScore:             va.out - va.in,
		VictimScoreWeighted:     va.weightedOut - va.weightedIn,

		BullyAvgInDeg:          ba.in,
		BullyAvgWeightedInDeg:  ba.weightedIn,
		BullyAvgOutDeg:         ba.out,
		BullyAvgWeightedOutDeg: ba.weightedOut,
		BullyScore:             ba.out - ba.in,
		BullyScoreWeighted:     ba.weightedOut - ba.weightedIn,

		MainVictimScore:         mv.out - mv.in,
		MainVictimScoreWeighted: mv.weightedOut - mv.weightedIn,
	}
}

// MostFrequentTopic returns the label of the largest topic weight. Ties go to
// the earlier topic. An empty vector yields "".
func (s *Graph) MostFrequentTopic() string {
	best := -1
	for i, w := range s.TopicVector {
		if i >= len(Topics) {
			break
		}
		if best < 0 || w > s.TopicVector[best] {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return Topics[best]
}

// PercentCommentsBullying is the share of bullying comments in the session.
func (s *Graph) PercentCommentsBullying() (float64, error) {
	if s.NumComments == 0 {
		return 0, fmt.Errorf("%w: unit %d", ErrNoComments, s.UnitID)
	}
	return float64(s.NumBullyingComments) / float64(s.NumComments), nil
}
