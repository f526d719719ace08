package step

// Channel is a handle to an artifact produced by a component output.
type Channel struct {
	Producer string       `json:"producer" yaml:"producer"`
	Output   string       `json:"output"   yaml:"output"`
	Type     ArtifactType `json:"type"     yaml:"type"`
}

// Ref returns the "producer.output" reference of the channel.
func (c *Channel) Ref() string {
	return c.Producer + "." + c.Output
}

// Handle is the result of calling a step: a *Channel when the step has
// exactly one output, Channels otherwise.
type Handle interface {
	isHandle()
}

func (*Channel) isHandle() {}

// Channels are output handles in declaration order.
type Channels []*Channel

func (Channels) isHandle() {}

// Component is the compiled form of a step instance.
type Component interface {
	ID() string
	Output(name string) (*Channel, bool)
}

// ComponentConstructor builds a component from artifact bindings and the
// serialized step parameters.
type ComponentConstructor func(artifacts map[string]*Channel, params map[string]string) (Component, error)

// ComponentFactory generates the component constructor for a step instance.
type ComponentFactory interface {
	Generate(s *Step) (ComponentConstructor, error)
}
