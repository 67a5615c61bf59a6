package moderation

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is the moderation state of a Reviewable.
type State string

const (
	StateInitial  State = "initial"
	StatePending  State = "pending"
	StateAccepted State = "accepted"
	StateRejected State = "rejected"
)

// States lists every moderation state in lifecycle order.
func States() []State {
	return []State{StateInitial, StatePending, StateAccepted, StateRejected}
}

// Name implements statemachine.State.
func (s State) Name() string { return string(s) }

// Valid reports whether s is one of States.
func (s State) Valid() bool {
	return slices.Contains(States(), s)
}

// Trigger is a caller-invoked request to move a Reviewable through the workflow.
type Trigger string

const (
	TriggerSubmit      Trigger = "submit"
	TriggerAccept      Trigger = "accept"
	TriggerReject      Trigger = "reject"
	TriggerEditComment Trigger = "edit_comment"
)

// Triggers lists every trigger the workflow knows about.
func Triggers() []Trigger {
	return []Trigger{TriggerSubmit, TriggerAccept, TriggerReject, TriggerEditComment}
}

// Name implements statemachine.Event.
func (t Trigger) Name() string { return string(t) }

// Provider owns a set of reviewables and configures how they are moderated.
type Provider struct {
	ID                uuid.UUID `yaml:"id" json:"id"`
	Name              string    `yaml:"name" json:"name"`
	Workflow          Mode      `yaml:"workflow" json:"workflow"`
	CommentsPrivate   bool      `yaml:"comments_private" json:"comments_private"`
	CommentsAnonymous bool      `yaml:"comments_anonymous" json:"comments_anonymous"`
}

// IsReviewed reports whether the provider moderates its items at all.
func (p *Provider) IsReviewed() bool {
	if p == nil {
		return false
	}
	mode, err := ModeOf(p)
	return err == nil && mode != ModeNone
}

// Reviewable is an item moving through the moderation workflow.
type Reviewable struct {
	ID                 uuid.UUID  `json:"id"`
	ProviderID         uuid.UUID  `json:"provider_id"`
	ContainerID        uuid.UUID  `json:"container_id"`
	State              State      `json:"state"`
	Published          bool       `json:"published"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	LastTransitionedAt *time.Time `json:"last_transitioned_at,omitempty"`
	Subjects           []string   `json:"subjects,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// Clone returns a deep copy so staged changes never leak into shared state.
func (r *Reviewable) Clone() *Reviewable {
	if r == nil {
		return nil
	}
	c := *r
	c.Subjects = slices.Clone(r.Subjects)
	if r.PublishedAt != nil {
		t := *r.PublishedAt
		c.PublishedAt = &t
	}
	if r.LastTransitionedAt != nil {
		t := *r.LastTransitionedAt
		c.LastTransitionedAt = &t
	}
	return &c
}

// HasSubjects reports whether at least one non-blank subject is assigned.
func (r *Reviewable) HasSubjects() bool {
	return slices.ContainsFunc(r.Subjects, func(s string) bool {
		return strings.TrimSpace(s) != ""
	})
}

// Action is the immutable audit record of one executed transition.
type Action struct {
	ID           uuid.UUID `json:"id"`
	ReviewableID uuid.UUID `json:"reviewable_id"`
	ActorID      uuid.UUID `json:"actor_id"`
	Trigger      Trigger   `json:"trigger"`
	FromState    State     `json:"from_state"`
	ToState      State     `json:"to_state"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Container is the project-like parent of a reviewable. Its primary artifact
// must belong to the container for the reviewable to be publishable.
type Container struct {
	ID                  uuid.UUID `json:"id"`
	PrimaryArtifactID   uuid.UUID `json:"primary_artifact_id"`
	ArtifactContainerID uuid.UUID `json:"artifact_container_id"`
	Public              bool      `json:"public"`
	Abandoned           bool      `json:"abandoned"`
}

// HasValidPrimaryArtifact reports whether an artifact is bound and owned by this container.
func (c *Container) HasValidPrimaryArtifact() bool {
	return c != nil &&
		c.PrimaryArtifactID != uuid.Nil &&
		c.ArtifactContainerID == c.ID
}
