// Package bpm turns an experiment configuration into the parameters and
// argument vectors pushed to the BPM logic device and RF front end.
package bpm

import "fmt"

// Datapath is one of the processing chains a capture is read from.
type Datapath int

const (
	Raw Datapath = iota
	TurnByTurn
	FastOrbitFeedback
)

// AllDatapaths lists every datapath in capture order.
var AllDatapaths = []Datapath{Raw, TurnByTurn, FastOrbitFeedback}

// Tag is the short name used in artifact paths.
func (d Datapath) Tag() string {
	switch d {
	case Raw:
		return "adc"
	case TurnByTurn:
		return "tbt"
	case FastOrbitFeedback:
		return "fofb"
	}
	return fmt.Sprintf("datapath(%d)", int(d))
}

func (d Datapath) String() string { return d.Tag() }

// ParseDatapath accepts "adc", "tbt" or "fofb".
func ParseDatapath(s string) (Datapath, error) {
	for _, d := range AllDatapaths {
		if d.Tag() == s {
			return d, nil
		}
	}
	return 0, &ChoiceError{Field: "datapath", Value: s, Choices: DatapathTags(AllDatapaths)}
}

// ParseDatapaths parses a list of tags, rejecting duplicates.
func ParseDatapaths(tags []string) ([]Datapath, error) {
	seen := make(map[Datapath]bool, len(tags))
	out := make([]Datapath, 0, len(tags))
	for _, tag := range tags {
		d, err := ParseDatapath(tag)
		if err != nil {
			return nil, err
		}
		if seen[d] {
			return nil, fmt.Errorf("datapath %s listed twice", tag)
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}

// DatapathTags returns the tags of ds in order.
func DatapathTags(ds []Datapath) []string {
	tags := make([]string, len(ds))
	for i, d := range ds {
		tags[i] = d.Tag()
	}
	return tags
}
