package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errCutProbFlag = errors.New("cut probabilities must look like SIZE=P1,P2,...")

// parseCutProbabilities reads --cut-prob values of the form "3=0,0.5,0.5".
// Range checks are left to the sampler.
func parseCutProbabilities(values []string) (map[int][]float64, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[int][]float64, len(values))
	for _, v := range values {
		sizeStr, probsStr, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q", errCutProbFlag, v)
		}
		size, err := strconv.Atoi(strings.TrimSpace(sizeStr))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errCutProbFlag, v)
		}
		if _, dup := out[size]; dup {
			return nil, fmt.Errorf("%w: size %d given twice", errCutProbFlag, size)
		}
		var probs []float64
		for _, p := range strings.Split(probsStr, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", errCutProbFlag, v)
			}
			probs = append(probs, f)
		}
		out[size] = probs
	}
	return out, nil
}
