package fleet

// Criteria selects the instances an operation acts on. It is a value type;
// the zero value selects nothing unless force is set.
type Criteria struct {
	project    string
	instanceID string
	force      bool
}

// NewCriteria returns criteria for the given project tag value, explicit
// instance id and force-all flag. Empty strings mean "not set".
func NewCriteria(project, instanceID string, force bool) Criteria {
	return Criteria{
		project:    project,
		instanceID: instanceID,
		force:      force,
	}
}

// Project returns the project tag value, or an empty string.
func (c Criteria) Project() string { return c.project }

// InstanceID returns the explicit instance id, or an empty string.
func (c Criteria) InstanceID() string { return c.instanceID }

// Force reports whether the force-all flag is set.
func (c Criteria) Force() bool { return c.force }

// HasTarget reports whether a project or an instance id narrows the selection.
func (c Criteria) HasTarget() bool {
	return c.project != "" || c.instanceID != ""
}
