package check

import (
	"go.uber.org/zap"

	"github.com/cgast/envcheck/pkg/events"
)

// Export is the flat, render-ready form of one evaluated requirement.
type Export struct {
	Name             string `json:"name" yaml:"name"`
	IsHardlyRequired bool   `json:"isHardlyRequired" yaml:"isHardlyRequired"`
	HasNotice        string `json:"hasNotice" yaml:"hasNotice"`
	Required         string `json:"required" yaml:"required"`
	Version          string `json:"version" yaml:"version"`
	Result           bool   `json:"result" yaml:"result"`
	// Unverified marks entries whose probe could not determine a value.
	Unverified bool `json:"unverified,omitempty" yaml:"unverified,omitempty"`
}

// Export renders the evaluated list. The first blocking entry with a
// failing result raises the fatal flag.
func (e *Evaluator) Export() []Export {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ensureEvaluated()

	out := make([]Export, 0, len(e.list))
	for _, r := range e.list {
		x := Export{
			Name:             r.Name,
			IsHardlyRequired: !r.WeakRequired,
			HasNotice:        r.HasNotice,
			Required:         r.Required,
			Version:          r.Version.String(),
			Result:           r.Result,
			Unverified:       r.Version.IsNull(),
		}
		if !x.Result && x.IsHardlyRequired && !e.fatal {
			e.fatal = true
			e.logger.Warn("mandatory requirement failed", zap.String("name", x.Name))
			e.publish(events.NewEvent(events.EventCheckFatal, x.Name))
		}
		out = append(out, x)
	}
	return out
}

// Summary counts outcomes of an exported list.
type Summary struct {
	Total      int  `json:"total" yaml:"total"`
	Passed     int  `json:"passed" yaml:"passed"`
	Failed     int  `json:"failed" yaml:"failed"`
	Advisory   int  `json:"advisory" yaml:"advisory"`
	Unverified int  `json:"unverified" yaml:"unverified"`
	Fatal      bool `json:"fatal" yaml:"fatal"`
}

// Summarize counts passes, blocking failures, advisory failures and
// undetermined probes.
func Summarize(list []Export) Summary {
	s := Summary{Total: len(list)}
	for _, x := range list {
		switch {
		case x.Result:
			s.Passed++
		case x.IsHardlyRequired:
			s.Failed++
			s.Fatal = true
		default:
			s.Advisory++
		}
		if x.Unverified {
			s.Unverified++
		}
	}
	return s
}
