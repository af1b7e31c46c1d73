package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tetra-labs/tetra/internal/config"
	"github.com/tetra-labs/tetra/internal/debate"
)

// Definition is the YAML description of a debate: the topic, the
// moderator, and the participant roster. It is the on-disk input to
// `tetra run`.
type Definition struct {
	Topic string `yaml:"topic"`
	// Mode is "collaborative" or "adversarial". Defaults to collaborative.
	Mode string `yaml:"mode"`
	// AutoMode overrides the configured auto-play mode when set.
	AutoMode string `yaml:"auto_mode"`
	// MaxRounds overrides the configured round limit when positive.
	MaxRounds int `yaml:"max_rounds"`
	// AutoFinish lets the session run past the round limit until the
	// moderator signals termination.
	AutoFinish bool `yaml:"auto_finish"`

	Moderator    Speaker   `yaml:"moderator"`
	Participants []Speaker `yaml:"participants"`
}

// Speaker is one debate seat in a definition file.
type Speaker struct {
	Name string `yaml:"name"`
	// Model is the backend model ID, e.g. "anthropic/claude-sonnet-4".
	Model string `yaml:"model"`
	// Persona is the system prompt fragment describing how this speaker
	// should argue.
	Persona string `yaml:"persona"`
	// ContextWindow is the model's context length in tokens. Zero means
	// it is estimated from the model ID.
	ContextWindow int `yaml:"context_window"`
}

// LoadDefinition reads and validates a debate definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read debate definition: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse debate definition: %w", err)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the definition for problems that would prevent a
// session from starting.
func (d *Definition) Validate() error {
	if d.Topic == "" {
		return fmt.Errorf("debate definition: topic is required")
	}
	if d.Moderator.Model == "" {
		return fmt.Errorf("debate definition: moderator model is required")
	}
	if len(d.Participants) < 2 {
		return fmt.Errorf("debate definition: at least 2 participants are required, got %d", len(d.Participants))
	}
	for i, p := range d.Participants {
		if p.Model == "" {
			return fmt.Errorf("debate definition: participant %d has no model", i+1)
		}
	}
	if d.Mode != "" && d.Mode != string(debate.ModeCollaborative) && d.Mode != string(debate.ModeAdversarial) {
		return fmt.Errorf("debate definition: invalid mode %q (valid: collaborative, adversarial)", d.Mode)
	}
	if d.AutoMode != "" && !config.IsValidAutoMode(d.AutoMode) {
		return fmt.Errorf("debate definition: invalid auto_mode %q (valid: %v)", d.AutoMode, config.ValidAutoModes())
	}
	if d.MaxRounds < 0 {
		return fmt.Errorf("debate definition: max_rounds must not be negative")
	}
	return nil
}

// Models returns the distinct backend model IDs the definition uses, in
// roster order with the moderator first.
func (d *Definition) Models() []string {
	seen := make(map[string]bool)
	var models []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			models = append(models, id)
		}
	}
	add(d.Moderator.Model)
	for _, p := range d.Participants {
		add(p.Model)
	}
	return models
}

// ControllerOptions converts the definition into engine options. Names
// left blank get positional defaults so transcripts stay readable.
func (d *Definition) ControllerOptions() debate.ControllerOptions {
	modName := d.Moderator.Name
	if modName == "" {
		modName = "Moderator"
	}
	opts := debate.ControllerOptions{
		Topic:      d.Topic,
		Mode:       debate.Mode(d.Mode),
		AutoMode:   debate.AutoMode(d.AutoMode),
		MaxRounds:  d.MaxRounds,
		AutoFinish: d.AutoFinish,
		Moderator: &debate.Participant{
			Name:          modName,
			Role:          debate.RoleModerator,
			ModelID:       d.Moderator.Model,
			SystemPrompt:  d.Moderator.Persona,
			ContextWindow: d.Moderator.ContextWindow,
		},
	}
	for i, p := range d.Participants {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("Participant %d", i+1)
		}
		opts.Participants = append(opts.Participants, &debate.Participant{
			Name:          name,
			Role:          debate.RoleParticipant,
			ModelID:       p.Model,
			SystemPrompt:  p.Persona,
			ContextWindow: p.ContextWindow,
		})
	}
	return opts
}
