package moderation

import (
	"errors"
	"maps"
	"strconv"
	"strings"
)

// Mode is a provider's moderation workflow.
type Mode string

const (
	ModeNone           Mode = "none"
	ModePreModeration  Mode = "pre_moderation"
	ModePostModeration Mode = "post_moderation"
)

// ParseMode normalizes a configured workflow name. The empty string means no
// moderation, and hyphenated spellings are accepted.
func ParseMode(s string) (Mode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "", string(ModeNone):
		return ModeNone, nil
	case string(ModePreModeration):
		return ModePreModeration, nil
	case string(ModePostModeration):
		return ModePostModeration, nil
	}
	return "", &ConfigurationError{Reason: "unrecognized workflow mode " + strconv.Quote(s)}
}

// ModeOf returns the provider's workflow mode. A nil provider is unmoderated.
func ModeOf(p *Provider) (Mode, error) {
	if p == nil {
		return ModeNone, nil
	}
	mode, err := ParseMode(string(p.Workflow))
	if err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			ce.ProviderID = p.ID
		}
		return "", err
	}
	return mode, nil
}

// PublicStates returns the states in which the provider's items are visible.
func PublicStates(p *Provider) (map[State]bool, error) {
	policy, err := ResolvePolicy(p)
	if err != nil {
		return nil, err
	}
	return maps.Clone(policy.public), nil
}

// Policy is the resolved visibility rule set for one provider.
type Policy struct {
	Mode   Mode
	public map[State]bool
}

// ResolvePolicy resolves the provider's mode into its visibility rules.
func ResolvePolicy(p *Provider) (Policy, error) {
	mode, err := ModeOf(p)
	if err != nil {
		return Policy{}, err
	}

	public := make(map[State]bool, 4)
	switch mode {
	case ModePreModeration:
		public[StateAccepted] = true
	case ModePostModeration:
		public[StatePending] = true
		public[StateAccepted] = true
	default:
		for _, s := range States() {
			public[s] = true
		}
	}
	return Policy{Mode: mode, public: public}, nil
}

// IsPublic reports whether items in state s are publicly visible.
func (p Policy) IsPublic(s State) bool {
	return p.public[s]
}
