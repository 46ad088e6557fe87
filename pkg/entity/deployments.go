package entity

import "encoding/json"

// DeploymentType identifies a class of deployed device or agent.
type DeploymentType struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// DeploymentItem is one entry of the deployment-status report.
type DeploymentItem struct {
	// Type is the kind of deployment, e.g. roaming client or network.
	Type *DeploymentType `json:"type"`
	// ActiveCount is the number of deployments seen within the window.
	ActiveCount *int `json:"activecount"`
	// Count is the total number of deployments of this type.
	Count *int `json:"count"`
}

// Validate checks that every displayed field is present.
func (d *DeploymentItem) Validate() error {
	switch {
	case d.Type == nil || d.Type.Label == "":
		return malformed("deployment item has no type label")
	case d.ActiveCount == nil:
		return malformed("deployment item %q has no activecount", d.Type.Label)
	case d.Count == nil:
		return malformed("deployment item %q has no count", d.Type.Label)
	}
	return nil
}

// Label is the display label of the deployment type.
func (d DeploymentItem) Label() string {
	if d.Type == nil {
		return ""
	}
	return d.Type.Label
}

// Active returns ActiveCount or zero.
func (d DeploymentItem) Active() int {
	if d.ActiveCount == nil {
		return 0
	}
	return *d.ActiveCount
}

// Total returns Count or zero.
func (d DeploymentItem) Total() int {
	if d.Count == nil {
		return 0
	}
	return *d.Count
}

// DecodeDeployments decodes and validates deployment-status items.
func DecodeDeployments(raw []json.RawMessage) ([]DeploymentItem, error) {
	return decodeAll[DeploymentItem]("deployment", raw)
}
